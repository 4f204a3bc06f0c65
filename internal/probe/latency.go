package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	goping "github.com/go-ping/ping"

	"pathcompare/internal/logger"
)

// LatencyProber ICMP延迟探测器
type LatencyProber struct {
	Count    int           // 探测包数量
	Timeout  time.Duration // 单包超时
	Interval time.Duration // 包间隔
}

// NewLatencyProber 创建延迟探测器
func NewLatencyProber(count int, timeout, interval time.Duration) *LatencyProber {
	return &LatencyProber{
		Count:    count,
		Timeout:  timeout,
		Interval: interval,
	}
}

// Probe 对目标发送一批ICMP探测包，返回逐包RTT样本
// 返回 error 仅代表传输层故障（解析失败、socket错误）；
// 目标不应答但链路正常时返回全丢包的有效结果
func (p *LatencyProber) Probe(ctx context.Context, target string) (*LatencyResult, error) {
	result := &LatencyResult{Target: target}

	// 如果是域名，先使用系统 DNS 解析
	ipAddr := target
	if net.ParseIP(target) == nil {
		ips, err := net.LookupHost(target)
		if err != nil {
			return nil, fmt.Errorf("DNS解析失败 (%s): %w", target, err)
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("DNS解析未返回IP地址: %s", target)
		}
		ipAddr = ips[0] // 使用第一个IP
		logger.Debugf("DNS解析: %s -> %s", target, ipAddr)
	}

	pinger, err := goping.NewPinger(ipAddr)
	if err != nil {
		return nil, fmt.Errorf("创建pinger失败: %w", err)
	}

	// Linux系统使用特权模式（ICMP）
	pinger.SetPrivileged(true)

	pinger.Count = p.Count
	pinger.Interval = p.Interval
	// 总超时 = 全部包的发送窗口 + 最后一个包的应答窗口
	pinger.Timeout = time.Duration(p.Count)*p.Interval + p.Timeout

	// 逐包记录RTT，保持接收顺序
	pinger.OnRecv = func(pkt *goping.Packet) {
		result.Samples = append(result.Samples, pkt.Rtt)
	}

	// 取消时停止当前批次，已收到的样本保留
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	logger.Debugf("开始ICMP探测: %s (包数: %d, 单包超时: %v)", ipAddr, p.Count, p.Timeout)

	if err := pinger.Run(); err != nil {
		return nil, fmt.Errorf("执行ping失败: %w", err)
	}

	stats := pinger.Statistics()
	result.Sent = stats.PacketsSent
	result.Received = stats.PacketsRecv
	result.MinRtt = stats.MinRtt
	result.AvgRtt = stats.AvgRtt
	result.MaxRtt = stats.MaxRtt

	logger.Debugf("ICMP探测完成: %s - 发送: %d, 接收: %d, 丢包率: %.1f%%, 平均延迟: %v",
		ipAddr, result.Sent, result.Received, result.LossRatio()*100, result.AvgRtt)

	return result, nil
}
