package framescorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client 逐帧画质评分服务客户端
//
// 外部AI评分服务：输入帧图片URL，返回0-100的画质分数。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建评分服务客户端
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type scoreRequest struct {
	ImageURL string `json:"imageUrl"`
}

type scoreResponse struct {
	Score int    `json:"score"`
	Error string `json:"error,omitempty"`
}

// ScoreFrame 对单帧图片评分，返回0-100分数
func (c *Client) ScoreFrame(ctx context.Context, imageURL string) (int, error) {
	body, err := json.Marshal(scoreRequest{ImageURL: imageURL})
	if err != nil {
		return 0, fmt.Errorf("构建评分请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/score-frame", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("构建评分请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("调用帧评分服务失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("读取评分响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("帧评分服务返回状态码 %d: %s", resp.StatusCode, string(respBody))
	}

	var result scoreResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("解析评分响应失败: %w", err)
	}
	if result.Error != "" {
		return 0, fmt.Errorf("帧评分服务错误: %s", result.Error)
	}

	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 100 {
		result.Score = 100
	}
	return result.Score, nil
}
