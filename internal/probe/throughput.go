package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"pathcompare/internal/logger"
)

// ThroughputProber HTTP下载吞吐量探测器
type ThroughputProber struct {
	Trials       int           // 测试轮数
	PayloadBytes int64         // 单轮读取字节上限
	URL          string        // 下载地址，留空则根据目标推导 http://<target>/
	Timeout      time.Duration // 单轮超时
	client       *http.Client
}

// NewThroughputProber 创建吞吐量探测器
func NewThroughputProber(trials int, payloadBytes int64, url string, timeout time.Duration) *ThroughputProber {
	// 跳过证书验证（内网测试端点常用自签名证书）
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		DisableKeepAlives: true, // 每轮独立建连，速率才可比
	}

	return &ThroughputProber{
		Trials:       trials,
		PayloadBytes: payloadBytes,
		URL:          url,
		Timeout:      timeout,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Measure 对目标执行多轮下载测试，记录每轮有效速率
// 单轮失败记录在 Trial.Error 中，不中断后续轮次
func (p *ThroughputProber) Measure(ctx context.Context, target string) (*ThroughputResult, error) {
	url := p.URL
	if url == "" {
		url = "http://" + target + "/"
	}

	result := &ThroughputResult{
		Target: target,
		URL:    url,
		Trials: make([]Trial, 0, p.Trials),
	}

	for i := 0; i < p.Trials; i++ {
		if ctx.Err() != nil {
			break
		}

		trial := p.runTrial(ctx, url)
		result.Trials = append(result.Trials, trial)

		if trial.Error != "" {
			logger.Warnf("吞吐量测试第 %d/%d 轮失败: %s", i+1, p.Trials, trial.Error)
		} else {
			logger.Debugf("吞吐量测试第 %d/%d 轮: %d 字节, 耗时 %v, 速率 %.1f KB/s",
				i+1, p.Trials, trial.Bytes, trial.Elapsed, trial.Rate/1024)
		}
	}

	return result, nil
}

// runTrial 执行单轮下载，读取上限 PayloadBytes 字节
func (p *ThroughputProber) runTrial(ctx context.Context, url string) Trial {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Trial{Error: fmt.Sprintf("创建请求失败: %v", err)}
	}

	start := time.Now()

	resp, err := p.client.Do(req)
	if err != nil {
		return Trial{Error: fmt.Sprintf("HTTP请求失败: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Trial{Error: fmt.Sprintf("HTTP状态码异常: %d", resp.StatusCode)}
	}

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, p.PayloadBytes))
	elapsed := time.Since(start)

	if err != nil && n == 0 {
		return Trial{Error: fmt.Sprintf("读取响应失败: %v", err)}
	}
	if n == 0 {
		return Trial{Error: "响应无数据"}
	}

	return Trial{
		Bytes:   n,
		Elapsed: elapsed,
		Rate:    float64(n) / elapsed.Seconds(),
	}
}
