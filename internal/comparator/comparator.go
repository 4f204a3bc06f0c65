package comparator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pathcompare/internal/apply"
	"pathcompare/internal/config"
	"pathcompare/internal/logger"
	"pathcompare/internal/probe"
	"pathcompare/internal/report"
	"pathcompare/internal/webhook"
)

// LatencyProber 延迟阶段探测接口
type LatencyProber interface {
	Probe(ctx context.Context, target string) (*probe.LatencyResult, error)
}

// ThroughputProber 吞吐量阶段探测接口
type ThroughputProber interface {
	Measure(ctx context.Context, target string) (*probe.ThroughputResult, error)
}

// PathDiscoverer 路径MTU探测接口
type PathDiscoverer interface {
	Discover(ctx context.Context, target string) (int, error)
}

// Comparator 路径质量比较器
// 按输入顺序逐个应用 profile 并执行固定的探测序列，汇总为一份报告。
// profile 之间严格串行，避免共享链路上的测量互相干扰。
type Comparator struct {
	Applier      apply.Applier
	Latency      LatencyProber
	Throughput   ThroughputProber
	Discoverer   PathDiscoverer // 可为 nil（禁用路径MTU探测）
	Notifier     *webhook.Client
	ApplyTimeout time.Duration
}

// New 根据配置创建比较器
func New(cfg *config.Config, applier apply.Applier) *Comparator {
	c := &Comparator{
		Applier: applier,
		Latency: probe.NewLatencyProber(
			cfg.Probe.Count,
			time.Duration(cfg.Probe.Timeout)*time.Second,
			time.Duration(cfg.Probe.Interval)*time.Millisecond,
		),
		Throughput: probe.NewThroughputProber(
			cfg.Throughput.Trials,
			cfg.Throughput.PayloadBytes,
			cfg.Throughput.URL,
			time.Duration(cfg.Throughput.Timeout)*time.Second,
		),
		ApplyTimeout: time.Duration(cfg.Apply.Timeout) * time.Second,
	}

	if cfg.Discover.Enabled {
		c.Discoverer = probe.NewDiscoverer(
			cfg.Discover.MinSize,
			cfg.Discover.MaxSize,
			time.Duration(cfg.Discover.Timeout)*time.Second,
		)
	}

	if cfg.Webhook.URL != "" {
		c.Notifier = webhook.NewClient(&cfg.Webhook)
	}

	return c
}

// Run 对目标在每个 profile 下执行完整的探测序列
// 报告中每个请求的 profile 恰好出现一次，顺序与输入一致。
// ConfigError 在任何探测开始前返回；profile 级故障记入报告，运行继续。
func (c *Comparator) Run(ctx context.Context, target string, profiles []config.Profile) (*report.Report, error) {
	if target == "" {
		return nil, config.NewConfigError("目标不能为空")
	}
	if len(profiles) == 0 {
		return nil, config.NewConfigError("至少需要一个 profile")
	}
	seen := make(map[string]bool)
	for _, p := range profiles {
		if p.Name == "" {
			return nil, config.NewConfigError("profile 名称不能为空")
		}
		if seen[p.Name] {
			return nil, config.NewConfigError("重复的 profile 名称: %s", p.Name)
		}
		seen[p.Name] = true
	}

	rep := &report.Report{
		ID:        uuid.NewString(),
		Target:    target,
		StartedAt: time.Now(),
		Results:   make([]report.ProfileResult, 0, len(profiles)),
	}

	logger.Info("==========================================")
	logger.Infof("开始路径质量比较: %s (%d 个 profile)", target, len(profiles))
	logger.Infof("运行ID: %s", rep.ID)
	logger.Info("==========================================")

	for i, p := range profiles {
		// 取消后不再开始新的 profile
		if ctx.Err() != nil {
			logger.Warnf("⏹ 已取消，跳过 profile [%s]", p.Name)
			rep.Results = append(rep.Results, report.ProfileResult{
				Profile:    p,
				Status:     report.StatusCancelled,
				StartedAt:  time.Now(),
				FinishedAt: time.Now(),
			})
			continue
		}

		logger.Infof("========== Profile %d/%d: %s ==========", i+1, len(profiles), p.Name)
		res := c.measureProfile(ctx, target, p)
		rep.Results = append(rep.Results, res)

		switch res.Status {
		case report.StatusOK:
			logger.Infof("✓ profile [%s] 完成 (丢包率: %.1f%%)", p.Name, res.Latency.LossRatio()*100)
		case report.StatusCancelled:
			logger.Warnf("⏹ profile [%s] 被取消", p.Name)
		default:
			logger.Errorf("✗ profile [%s] 失败: %s", p.Name, res.StatusString())
			if c.Notifier.Enabled() {
				if err := c.Notifier.NotifyProfileFailed(rep.ID, target, p.Name, res.StatusString()); err != nil {
					logger.Warnf("发送失败通知出错: %v", err)
				}
			}
		}
	}

	rep.FinishedAt = time.Now()

	failed := 0
	for _, res := range rep.Results {
		if res.Status != report.StatusOK {
			failed++
		}
	}
	logger.Infof("========== 比较完成: %d/%d profile 成功 (耗时: %v) ==========",
		len(rep.Results)-failed, len(rep.Results), rep.FinishedAt.Sub(rep.StartedAt))

	if c.Notifier.Enabled() {
		if err := c.Notifier.NotifyRunCompleted(rep.ID, target, failed, len(rep.Results)); err != nil {
			logger.Warnf("发送完成通知出错: %v", err)
		}
	}

	return rep, nil
}

// measureProfile 对单个 profile 执行 应用参数 -> 延迟 -> 吞吐量 -> 路径MTU 的直线流程
// 任何阶段的故障只影响当前 profile
func (c *Comparator) measureProfile(ctx context.Context, target string, p config.Profile) report.ProfileResult {
	res := report.ProfileResult{
		Profile:   p,
		StartedAt: time.Now(),
	}
	defer func() {
		res.FinishedAt = time.Now()
	}()

	// 阶段1: 应用 profile 参数（等待外部协作方确认）
	logger.Infof("[%s] 应用参数 (超时: %v)...", p.Name, c.ApplyTimeout)
	applyCtx, cancel := context.WithTimeout(ctx, c.ApplyTimeout)
	err := c.Applier.Apply(applyCtx, p)
	// 超时判定以 applyCtx 为准: 被杀死的外部命令返回的是 ExitError，
	// 不携带 DeadlineExceeded
	timedOut := errors.Is(applyCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			res.Status = report.StatusCancelled
			return res
		}
		res.Status = report.StatusFailed
		if timedOut {
			res.Reason = report.ReasonConfigApplyTimeout
		} else {
			res.Reason = report.ReasonConfigApply
		}
		logger.Errorf("[%s] 应用参数失败: %v", p.Name, err)
		return res
	}

	// 阶段2: 延迟/丢包
	logger.Infof("[%s] 延迟探测...", p.Name)
	lat, err := c.Latency.Probe(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			res.Status = report.StatusCancelled
			return res
		}
		res.Status = report.StatusFailed
		res.Reason = report.ReasonTransport
		logger.Errorf("[%s] 延迟探测失败: %v", p.Name, err)
		return res
	}
	res.Latency = lat
	if ctx.Err() != nil {
		res.Status = report.StatusCancelled
		return res
	}

	// 阶段3: 吞吐量
	logger.Infof("[%s] 吞吐量测试...", p.Name)
	tp, err := c.Throughput.Measure(ctx, target)
	if err != nil {
		logger.Warnf("[%s] 吞吐量测试出错: %v", p.Name, err)
	} else {
		res.Throughput = tp
	}
	if ctx.Err() != nil {
		res.Status = report.StatusCancelled
		return res
	}

	// 阶段4: 路径MTU探测（不可用时记为 unknown，不影响状态）
	res.PathMTU = probe.PathMTUUnknown
	if c.Discoverer != nil {
		logger.Infof("[%s] 路径MTU探测...", p.Name)
		mtu, err := c.Discoverer.Discover(ctx, target)
		if err != nil {
			logger.Warnf("[%s] 路径MTU不可知: %v", p.Name, err)
		} else {
			res.PathMTU = mtu
		}
		if ctx.Err() != nil && err != nil {
			// 取消发生在最后阶段且未完成时仍标记取消
			res.Status = report.StatusCancelled
			return res
		}
	}

	res.Status = report.StatusOK
	return res
}
