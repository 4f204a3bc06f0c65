package report

import (
	"fmt"
	"time"

	"pathcompare/internal/config"
	"pathcompare/internal/probe"
)

// Status profile 测量状态
type Status string

const (
	StatusOK        Status = "ok"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// 失败原因
const (
	ReasonTransport          = "transport"            // 延迟阶段传输层故障
	ReasonConfigApply        = "config-apply"         // 参数应用失败
	ReasonConfigApplyTimeout = "config-apply-timeout" // 参数应用超时
)

// ProfileResult 单个 profile 的测量结果
// 测量完成后只读
type ProfileResult struct {
	Profile    config.Profile          `json:"profile"`
	Status     Status                  `json:"status"`
	Reason     string                  `json:"reason,omitempty"`
	Latency    *probe.LatencyResult    `json:"latency,omitempty"`
	Throughput *probe.ThroughputResult `json:"throughput,omitempty"`
	PathMTU    int                     `json:"path_mtu"` // 0 = unknown
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
}

// StatusString 可读状态: ok / failed:<reason> / cancelled
func (r *ProfileResult) StatusString() string {
	if r.Status == StatusFailed && r.Reason != "" {
		return fmt.Sprintf("%s:%s", r.Status, r.Reason)
	}
	return string(r.Status)
}

// Report 一次完整比较的结果
// 每个请求的 profile 恰好对应一条结果，顺序与输入一致
type Report struct {
	ID         string          `json:"id"`
	Target     string          `json:"target"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    []ProfileResult `json:"results"`
}

// HasFailures 是否存在未成功的 profile
func (r *Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Status != StatusOK {
			return true
		}
	}
	return false
}
