package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnalysisStage 评分任务所处阶段
type AnalysisStage string

const (
	StageQueued      AnalysisStage = "queued"       // 已提交，等待任务启动
	StageDownloading AnalysisStage = "downloading"  // 下载视频
	StageChecking    AnalysisStage = "checking"     // 检测时长并确定抽帧策略
	StageExtracting  AnalysisStage = "extracting"   // 抽取帧
	StageUploading   AnalysisStage = "uploading"    // 上传帧图片
	StageAnalyzing   AnalysisStage = "analyzing"    // 逐帧AI评分
	StageScoring     AnalysisStage = "scoring"      // 去除最低分帧并计算画面分
	StageDataScoring AnalysisStage = "data_scoring" // 结合平台数据计算最终评分
	StageCompleted   AnalysisStage = "completed"    // 全部完成
	StageError       AnalysisStage = "error"        // 任务失败
)

// FrameSnapshot 进度中携带的帧信息快照（轮询端展示用）
type FrameSnapshot struct {
	FrameIndex       int     `json:"frameIndex"`
	TimestampSeconds float64 `json:"timestampSeconds"`
	ImageURL         string  `json:"imageUrl"`
	FrameScore       *int    `json:"frameScore,omitempty"`
	Dropped          bool    `json:"dropped,omitempty"`
}

// FrameSnapshots JSON列类型
type FrameSnapshots []FrameSnapshot

func (s FrameSnapshots) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *FrameSnapshots) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法解析frames类型: %T", src)
	}
	return json.Unmarshal(data, s)
}

// AnalysisProgress 进行中任务的进度投影，客户端轮询读取
//
// 每个提交一行，阶段边界处更新；progress在任务内单调不减。
type AnalysisProgress struct {
	SubmissionID uuid.UUID      `json:"submissionId" db:"submission_id"`
	Stage        AnalysisStage  `json:"stage" db:"stage"`
	Progress     int            `json:"progress" db:"progress"`
	Detail       string         `json:"detail" db:"detail"`
	Frames       FrameSnapshots `json:"frameAnalyses" db:"frames"`
	Completed    bool           `json:"completed" db:"completed"`
	Error        string         `json:"error,omitempty" db:"error"`
	UpdatedAt    time.Time      `json:"updatedAt" db:"updated_at"`
}
