package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pathcompare/internal/config"
	"pathcompare/internal/logger"
)

// EventType 通知事件类型
type EventType string

const (
	EventProfileFailed EventType = "profile_failed" // 单个 profile 测量失败
	EventRunCompleted  EventType = "run_completed"  // 一次比较运行结束
)

// Notification 通知内容
type Notification struct {
	Event     EventType `json:"event"`
	RunID     string    `json:"run_id"`
	Target    string    `json:"target"`
	Profile   string    `json:"profile,omitempty"` // profile_failed 时有效
	Status    string    `json:"status,omitempty"`
	Failed    int       `json:"failed"` // 未成功的 profile 数
	Total     int       `json:"total"`  // 请求的 profile 总数
	Timestamp int64     `json:"timestamp"`
	Message   string    `json:"message"`
}

// Client Webhook 客户端
type Client struct {
	cfg        *config.WebhookConfig
	httpClient *http.Client
}

// NewClient 创建 Webhook 客户端
func NewClient(cfg *config.WebhookConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled 是否配置了通知地址
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.URL != ""
}

// NotifyProfileFailed 发送 profile 失败通知
func (c *Client) NotifyProfileFailed(runID, target, profile, status string) error {
	return c.send(&Notification{
		Event:   EventProfileFailed,
		RunID:   runID,
		Target:  target,
		Profile: profile,
		Status:  status,
		Message: fmt.Sprintf("[%s] profile %s 测量失败: %s", target, profile, status),
	})
}

// NotifyRunCompleted 发送运行结束通知
func (c *Client) NotifyRunCompleted(runID, target string, failed, total int) error {
	return c.send(&Notification{
		Event:  EventRunCompleted,
		RunID:  runID,
		Target: target,
		Failed: failed,
		Total:  total,
		Message: fmt.Sprintf("[%s] 比较运行结束: %d/%d profile 成功",
			target, total-failed, total),
	})
}

func (c *Client) send(n *Notification) error {
	if !c.Enabled() {
		return nil
	}

	n.Timestamp = time.Now().Unix()

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("序列化通知失败: %w", err)
	}

	method := c.cfg.Method
	if method == "" {
		method = "POST"
	}

	req, err := http.NewRequest(method, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	logger.Infof("[WEBHOOK] 发送通知: %s -> %s", n.Event, c.cfg.URL)
	logger.Debugf("[WEBHOOK] Body: %s", string(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Errorf("[WEBHOOK] 发送失败: %v", err)
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warnf("[WEBHOOK] 响应状态码异常: %d", resp.StatusCode)
		return fmt.Errorf("响应状态码异常: %d", resp.StatusCode)
	}

	logger.Infof("[WEBHOOK] ✓ 通知发送成功 (状态码: %d)", resp.StatusCode)
	return nil
}
