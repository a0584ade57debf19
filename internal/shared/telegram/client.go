package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// Client — Telegram Bot API 客户端
// 只封装通知投递需要的 sendMessage，供发件箱 worker 使用
// =============================================================================

// Client Telegram 客户端
type Client struct {
	botToken   string
	apiBase    string
	httpClient *http.Client
}

// NewClient 创建 Telegram 客户端实例
func NewClient(botToken, apiBase string) *Client {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &Client{
		botToken: botToken,
		apiBase:  apiBase,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// apiResponse Bot API 通用响应
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// SendMessage 发送文本消息到指定 chat
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	reqBody := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求 Telegram 失败: %w", err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("解析 Telegram 响应失败: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("Telegram 错误[%d]: %s", result.ErrorCode, result.Description)
	}
	return nil
}
