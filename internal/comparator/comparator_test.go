package comparator

import (
	"context"
	"errors"
	"testing"
	"time"

	"pathcompare/internal/config"
	"pathcompare/internal/probe"
	"pathcompare/internal/report"
)

// fakeApplier 可控的参数应用协作方
type fakeApplier struct {
	err      error
	block    bool  // 阻塞直到超时，模拟外部进程无响应
	blockErr error // 阻塞结束后返回的错误，模拟被杀死的外部命令
	calls    []string
}

func (f *fakeApplier) Apply(ctx context.Context, p config.Profile) error {
	f.calls = append(f.calls, p.Name)
	if f.block {
		<-ctx.Done()
		if f.blockErr != nil {
			return f.blockErr
		}
		return ctx.Err()
	}
	return f.err
}

// fakeLatency 固定结果的延迟探测
type fakeLatency struct {
	sent     int
	received int
	err      error
}

func (f *fakeLatency) Probe(ctx context.Context, target string) (*probe.LatencyResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	samples := make([]time.Duration, f.received)
	for i := range samples {
		samples[i] = 10 * time.Millisecond
	}
	return &probe.LatencyResult{
		Target:   target,
		Sent:     f.sent,
		Received: f.received,
		Samples:  samples,
		AvgRtt:   10 * time.Millisecond,
	}, nil
}

// fakeThroughput 固定结果的吞吐量测试
type fakeThroughput struct{}

func (f *fakeThroughput) Measure(ctx context.Context, target string) (*probe.ThroughputResult, error) {
	return &probe.ThroughputResult{
		Target: target,
		Trials: []probe.Trial{{Bytes: 1024, Elapsed: time.Second, Rate: 1024}},
	}, nil
}

// fakeDiscoverer 固定结果的路径MTU探测，可在探测后触发取消
type fakeDiscoverer struct {
	mtu        int
	err        error
	afterProbe func()
}

func (f *fakeDiscoverer) Discover(ctx context.Context, target string) (int, error) {
	if f.afterProbe != nil {
		defer f.afterProbe()
	}
	return f.mtu, f.err
}

func newTestComparator(applier *fakeApplier, lat *fakeLatency, disc *fakeDiscoverer) *Comparator {
	comp := &Comparator{
		Applier:      applier,
		Latency:      lat,
		Throughput:   &fakeThroughput{},
		ApplyTimeout: time.Second,
	}
	if disc != nil {
		comp.Discoverer = disc
	}
	return comp
}

func profileSet(names ...string) []config.Profile {
	profiles := make([]config.Profile, 0, len(names))
	for _, n := range names {
		profiles = append(profiles, config.Profile{Name: n, Params: map[string]string{"mtu": "1500"}})
	}
	return profiles
}

func TestRunOrderAndCount(t *testing.T) {
	applier := &fakeApplier{}
	comp := newTestComparator(applier, &fakeLatency{sent: 100, received: 100}, &fakeDiscoverer{mtu: 1500})

	rep, err := comp.Run(context.Background(), "1.1.1.1", profileSet("mtu1500", "mtu9000", "base"))
	if err != nil {
		t.Fatalf("Run 返回错误: %v", err)
	}

	if len(rep.Results) != 3 {
		t.Fatalf("结果数量 = %d, 期望 3", len(rep.Results))
	}
	wantOrder := []string{"mtu1500", "mtu9000", "base"}
	for i, res := range rep.Results {
		if res.Profile.Name != wantOrder[i] {
			t.Errorf("结果[%d] = %s, 期望 %s", i, res.Profile.Name, wantOrder[i])
		}
		if res.Status != report.StatusOK {
			t.Errorf("profile %s 状态 = %s, 期望 ok", res.Profile.Name, res.StatusString())
		}
		if res.Latency == nil || len(res.Latency.Samples) != 100 {
			t.Errorf("profile %s 应有 100 个延迟样本", res.Profile.Name)
		}
		if res.Latency.LossRatio() != 0 {
			t.Errorf("profile %s 丢包率 = %v, 期望 0", res.Profile.Name, res.Latency.LossRatio())
		}
		if res.PathMTU != 1500 {
			t.Errorf("profile %s PathMTU = %d, 期望 1500", res.Profile.Name, res.PathMTU)
		}
	}

	if len(applier.calls) != 3 {
		t.Errorf("Apply 调用次数 = %d, 期望 3", len(applier.calls))
	}
	if rep.HasFailures() {
		t.Error("全部成功时 HasFailures 应为 false")
	}
}

func TestRunDuplicateNamesRejected(t *testing.T) {
	applier := &fakeApplier{}
	comp := newTestComparator(applier, &fakeLatency{sent: 100, received: 100}, nil)

	_, err := comp.Run(context.Background(), "1.1.1.1", profileSet("a", "a"))
	if err == nil {
		t.Fatal("重复名称应返回错误")
	}
	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("错误类型应为 *ConfigError, 实际 %T", err)
	}
	if len(applier.calls) != 0 {
		t.Errorf("配置错误时不应执行任何探测, Apply 被调用 %d 次", len(applier.calls))
	}
}

func TestRunEmptyProfilesRejected(t *testing.T) {
	comp := newTestComparator(&fakeApplier{}, &fakeLatency{}, nil)

	_, err := comp.Run(context.Background(), "1.1.1.1", nil)
	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("空 profile 列表应返回 ConfigError, 实际 %v", err)
	}
}

func TestRunTransportFailureContinues(t *testing.T) {
	// 第一个 profile 传输故障，第二个正常
	failing := &fakeLatency{err: errors.New("DNS解析失败")}
	comp := newTestComparator(&fakeApplier{}, failing, nil)

	rep, err := comp.Run(context.Background(), "unreachable.invalid", profileSet("bad", "also-bad"))
	if err != nil {
		t.Fatalf("Run 返回错误: %v", err)
	}

	if len(rep.Results) != 2 {
		t.Fatalf("结果数量 = %d, 期望 2", len(rep.Results))
	}
	for _, res := range rep.Results {
		if res.StatusString() != "failed:transport" {
			t.Errorf("profile %s 状态 = %s, 期望 failed:transport", res.Profile.Name, res.StatusString())
		}
		if res.Latency != nil {
			t.Errorf("传输故障的 profile 不应有延迟样本")
		}
	}
	if !rep.HasFailures() {
		t.Error("存在失败时 HasFailures 应为 true")
	}
}

func TestRunApplyFailure(t *testing.T) {
	applier := &fakeApplier{err: errors.New("reload 接口状态码异常: 500")}
	comp := newTestComparator(applier, &fakeLatency{sent: 100, received: 100}, nil)

	rep, err := comp.Run(context.Background(), "1.1.1.1", profileSet("a"))
	if err != nil {
		t.Fatalf("Run 返回错误: %v", err)
	}

	if got := rep.Results[0].StatusString(); got != "failed:config-apply" {
		t.Errorf("状态 = %s, 期望 failed:config-apply", got)
	}
}

func TestRunApplyTimeout(t *testing.T) {
	applier := &fakeApplier{block: true}
	comp := newTestComparator(applier, &fakeLatency{sent: 100, received: 100}, nil)
	comp.ApplyTimeout = 20 * time.Millisecond

	rep, err := comp.Run(context.Background(), "1.1.1.1", profileSet("slow"))
	if err != nil {
		t.Fatalf("Run 返回错误: %v", err)
	}

	if got := rep.Results[0].StatusString(); got != "failed:config-apply-timeout" {
		t.Errorf("状态 = %s, 期望 failed:config-apply-timeout", got)
	}
}

func TestRunApplyTimeoutFromKilledCommand(t *testing.T) {
	// 被杀死的外部命令返回 ExitError 而非 DeadlineExceeded，
	// 超时原因必须按应用阶段的 deadline 判定
	applier := &fakeApplier{block: true, blockErr: errors.New("signal: killed")}
	comp := newTestComparator(applier, &fakeLatency{sent: 100, received: 100}, nil)
	comp.ApplyTimeout = 20 * time.Millisecond

	rep, err := comp.Run(context.Background(), "1.1.1.1", profileSet("killed"))
	if err != nil {
		t.Fatalf("Run 返回错误: %v", err)
	}

	if got := rep.Results[0].StatusString(); got != "failed:config-apply-timeout" {
		t.Errorf("状态 = %s, 期望 failed:config-apply-timeout", got)
	}
}

func TestRunTotalLossIsValidResult(t *testing.T) {
	// 链路正常但目标完全不应答: 有效的全丢包结果，不算失败
	comp := newTestComparator(&fakeApplier{}, &fakeLatency{sent: 100, received: 0}, nil)

	rep, err := comp.Run(context.Background(), "1.1.1.1", profileSet("silent"))
	if err != nil {
		t.Fatalf("Run 返回错误: %v", err)
	}

	res := rep.Results[0]
	if res.Status != report.StatusOK {
		t.Fatalf("状态 = %s, 期望 ok", res.StatusString())
	}
	if res.Latency.LossRatio() != 1 {
		t.Errorf("丢包率 = %v, 期望 1", res.Latency.LossRatio())
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// 第一个 profile 的最后阶段完成后触发取消
	disc := &fakeDiscoverer{mtu: 1500, afterProbe: cancel}
	comp := newTestComparator(&fakeApplier{}, &fakeLatency{sent: 100, received: 100}, disc)

	rep, err := comp.Run(ctx, "1.1.1.1", profileSet("first", "second", "third"))
	if err != nil {
		t.Fatalf("Run 返回错误: %v", err)
	}

	if len(rep.Results) != 3 {
		t.Fatalf("结果数量 = %d, 期望 3", len(rep.Results))
	}
	if rep.Results[0].Status != report.StatusOK {
		t.Errorf("第一个 profile 状态 = %s, 期望 ok", rep.Results[0].StatusString())
	}
	for _, res := range rep.Results[1:] {
		if res.Status != report.StatusCancelled {
			t.Errorf("profile %s 状态 = %s, 期望 cancelled", res.Profile.Name, res.StatusString())
		}
	}
}

func TestRunDiscoverUnsupportedIsNotFatal(t *testing.T) {
	disc := &fakeDiscoverer{err: probe.ErrDiscoverUnsupported}
	comp := newTestComparator(&fakeApplier{}, &fakeLatency{sent: 100, received: 100}, disc)

	rep, err := comp.Run(context.Background(), "1.1.1.1", profileSet("a"))
	if err != nil {
		t.Fatalf("Run 返回错误: %v", err)
	}

	res := rep.Results[0]
	if res.Status != report.StatusOK {
		t.Errorf("状态 = %s, 期望 ok", res.StatusString())
	}
	if res.PathMTU != probe.PathMTUUnknown {
		t.Errorf("PathMTU = %d, 期望 unknown(0)", res.PathMTU)
	}
}
