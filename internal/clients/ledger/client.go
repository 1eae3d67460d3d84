package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client 积分账本服务客户端
//
// 账本侧的加分操作是原子的增量更新；至多一次调用
// 由调用方保证（评分任务的CAS守卫、管理员调分的事务）。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建积分账本客户端
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type addCreditsRequest struct {
	UserID string `json:"userId"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// AddCredits 给用户增加Credits
func (c *Client) AddCredits(ctx context.Context, userID string, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("无效的加分数额: %d", amount)
	}

	body, err := json.Marshal(addCreditsRequest{UserID: userID, Amount: amount, Reason: reason})
	if err != nil {
		return fmt.Errorf("构建加分请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/credits/add", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("构建加分请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("调用积分账本服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("积分账本服务返回状态码 %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
