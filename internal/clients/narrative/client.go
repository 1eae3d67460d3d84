package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"scoring-service/internal/domain/entities"
)

// Client 评语生成服务客户端
//
// 外部LLM网关：输入各维度得分，返回总结评价、亮点和改进建议。
// 文案对本服务是不透明内容，失败时评分流程照常完成。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建评语生成客户端
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Summary 生成的评语内容
type Summary struct {
	Summary      string   `json:"summary"`
	Highlights   []string `json:"highlights"`
	Improvements []string `json:"improvements"`
}

type summarizeRequest struct {
	FinalScore int                                `json:"finalScore"`
	Dimensions map[string]entities.DimensionScore `json:"dimensions"`
}

// Summarize 根据维度得分生成评语
func (c *Client) Summarize(ctx context.Context, finalScore int, dimensions map[string]entities.DimensionScore) (Summary, error) {
	body, err := json.Marshal(summarizeRequest{FinalScore: finalScore, Dimensions: dimensions})
	if err != nil {
		return Summary{}, fmt.Errorf("构建评语请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/summarize", bytes.NewReader(body))
	if err != nil {
		return Summary{}, fmt.Errorf("构建评语请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("调用评语生成服务失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Summary{}, fmt.Errorf("读取评语响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Summary{}, fmt.Errorf("评语生成服务返回状态码 %d: %s", resp.StatusCode, string(respBody))
	}

	var result Summary
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Summary{}, fmt.Errorf("解析评语响应失败: %w", err)
	}
	return result, nil
}
