package probe

import "time"

// LatencyResult 延迟阶段测量结果
type LatencyResult struct {
	Target   string          `json:"target"`
	Sent     int             `json:"sent"`     // 发送的探测包数
	Received int             `json:"received"` // 收到应答的包数
	Samples  []time.Duration `json:"samples"`  // 每个应答的RTT，按接收顺序
	MinRtt   time.Duration   `json:"min_rtt"`
	AvgRtt   time.Duration   `json:"avg_rtt"`
	MaxRtt   time.Duration   `json:"max_rtt"`
}

// LossRatio 丢包率 = (发送 - 接收) / 发送
func (r *LatencyResult) LossRatio() float64 {
	if r.Sent == 0 {
		return 0
	}
	return float64(r.Sent-r.Received) / float64(r.Sent)
}

// Trial 单轮吞吐量测试结果
type Trial struct {
	Bytes   int64         `json:"bytes"`
	Elapsed time.Duration `json:"elapsed"`
	Rate    float64       `json:"rate"` // 字节/秒
	Error   string        `json:"error,omitempty"`
}

// ThroughputResult 吞吐量阶段测量结果
type ThroughputResult struct {
	Target string  `json:"target"`
	URL    string  `json:"url"`
	Trials []Trial `json:"trials"`
}

// AvgRate 成功轮次的平均速率（字节/秒），全部失败返回0
func (r *ThroughputResult) AvgRate() float64 {
	var sum float64
	var n int
	for _, t := range r.Trials {
		if t.Error == "" {
			sum += t.Rate
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// PathMTUUnknown 路径MTU未知（探测不可用或目标无应答）
const PathMTUUnknown = 0
