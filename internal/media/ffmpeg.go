package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FFmpegExtractor 基于ffmpeg/ffprobe的视频帧抽取实现
type FFmpegExtractor struct {
	tempDir    string
	httpClient *http.Client
}

// NewFFmpegExtractor 创建帧抽取器
func NewFFmpegExtractor() (*FFmpegExtractor, error) {
	tempDir := filepath.Join(os.TempDir(), "video_scoring")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %w", err)
	}

	return &FFmpegExtractor{
		tempDir: tempDir,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Download 下载视频到临时文件，返回本地路径
func (e *FFmpegExtractor) Download(ctx context.Context, videoURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("构建下载请求失败: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("下载视频失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("下载视频失败: 状态码 %d", resp.StatusCode)
	}

	tempPath := filepath.Join(e.tempDir, fmt.Sprintf("input_%s.mp4", uuid.New().String()))
	out, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("保存视频到临时文件失败: %w", err)
	}

	return tempPath, nil
}

// ProbeDuration 使用ffprobe获取视频时长（秒）
func (e *FFmpegExtractor) ProbeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(
		ctx,
		"ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("执行ffprobe失败: %v, %s", err, stderr.String())
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("解析视频时长失败: %w", err)
	}

	return duration, nil
}

// ExtractFrame 使用ffmpeg在指定时间点抽取一帧，返回JPEG字节
func (e *FFmpegExtractor) ExtractFrame(ctx context.Context, videoPath string, timestampSeconds float64) ([]byte, error) {
	outputPath := filepath.Join(e.tempDir, fmt.Sprintf("frame_%s.jpg", uuid.New().String()))
	defer os.Remove(outputPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-ss", fmt.Sprintf("%.3f", timestampSeconds),
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		"-y",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("在时间点%.3f抽取帧失败: %v, %s", timestampSeconds, err, stderr.String())
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("读取帧图片失败: %w", err)
	}
	return data, nil
}

// Cleanup 清理下载的临时视频
func (e *FFmpegExtractor) Cleanup(videoPath string) {
	if videoPath != "" {
		os.Remove(videoPath)
	}
}
