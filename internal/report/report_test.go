package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pathcompare/internal/config"
	"pathcompare/internal/probe"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		name   string
		result ProfileResult
		want   string
	}{
		{
			name:   "ok",
			result: ProfileResult{Status: StatusOK},
			want:   "ok",
		},
		{
			name:   "failed with reason",
			result: ProfileResult{Status: StatusFailed, Reason: ReasonTransport},
			want:   "failed:transport",
		},
		{
			name:   "failed apply timeout",
			result: ProfileResult{Status: StatusFailed, Reason: ReasonConfigApplyTimeout},
			want:   "failed:config-apply-timeout",
		},
		{
			name:   "cancelled",
			result: ProfileResult{Status: StatusCancelled},
			want:   "cancelled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.StatusString(); got != tt.want {
				t.Errorf("StatusString() = %q, 期望 %q", got, tt.want)
			}
		})
	}
}

func TestHasFailures(t *testing.T) {
	ok := ProfileResult{Status: StatusOK}
	failed := ProfileResult{Status: StatusFailed, Reason: ReasonTransport}
	cancelled := ProfileResult{Status: StatusCancelled}

	tests := []struct {
		name    string
		results []ProfileResult
		want    bool
	}{
		{name: "all ok", results: []ProfileResult{ok, ok}, want: false},
		{name: "one failed", results: []ProfileResult{ok, failed}, want: true},
		{name: "cancelled counts as failure", results: []ProfileResult{ok, cancelled}, want: true},
		{name: "empty", results: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Report{Results: tt.results}
			if got := r.HasFailures(); got != tt.want {
				t.Errorf("HasFailures() = %v, 期望 %v", got, tt.want)
			}
		})
	}
}

func testReport() *Report {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Report{
		ID:        "test-run",
		Target:    "1.1.1.1",
		StartedAt: started,
		Results: []ProfileResult{
			{
				Profile: config.Profile{Name: "mtu1500", Params: map[string]string{"mtu": "1500"}},
				Status:  StatusOK,
				Latency: &probe.LatencyResult{
					Target:   "1.1.1.1",
					Sent:     100,
					Received: 100,
					Samples:  []time.Duration{10 * time.Millisecond},
				},
				Throughput: &probe.ThroughputResult{
					Target: "1.1.1.1",
					Trials: []probe.Trial{{Bytes: 1024, Elapsed: time.Second, Rate: 1024}},
				},
				PathMTU: 1500,
			},
			{
				Profile: config.Profile{Name: "mtu9000", Params: map[string]string{"mtu": "9000"}},
				Status:  StatusFailed,
				Reason:  ReasonTransport,
			},
		},
		FinishedAt: started.Add(time.Minute),
	}
}

func TestWriteLayout(t *testing.T) {
	dir := t.TempDir()

	runDir, err := Write(dir, testReport())
	if err != nil {
		t.Fatalf("Write 返回错误: %v", err)
	}

	// 逐阶段逐profile一个文件 + 汇总文件
	wantFiles := []string{
		"mtu1500-latency.json",
		"mtu1500-throughput.json",
		"mtu1500-pathmtu.json",
		"mtu9000-pathmtu.json",
		"summary.json",
	}
	for _, name := range wantFiles {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Errorf("缺少结果文件 %s: %v", name, err)
		}
	}

	// 失败的 profile 没有延迟/吞吐量文件
	for _, name := range []string{"mtu9000-latency.json", "mtu9000-throughput.json"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); !os.IsNotExist(err) {
			t.Errorf("失败的 profile 不应有 %s", name)
		}
	}
}

func TestWriteSummaryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rep := testReport()

	runDir, err := Write(dir, rep)
	if err != nil {
		t.Fatalf("Write 返回错误: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(runDir, "summary.json"))
	if err != nil {
		t.Fatalf("读取 summary.json 失败: %v", err)
	}

	var loaded Report
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("解析 summary.json 失败: %v", err)
	}

	if loaded.Target != rep.Target {
		t.Errorf("Target = %q, 期望 %q", loaded.Target, rep.Target)
	}
	if len(loaded.Results) != len(rep.Results) {
		t.Fatalf("结果数量 = %d, 期望 %d", len(loaded.Results), len(rep.Results))
	}
	// 顺序与状态保持
	if loaded.Results[0].Profile.Name != "mtu1500" || loaded.Results[0].Status != StatusOK {
		t.Errorf("结果[0] = %s/%s, 期望 mtu1500/ok",
			loaded.Results[0].Profile.Name, loaded.Results[0].Status)
	}
	if loaded.Results[1].StatusString() != "failed:transport" {
		t.Errorf("结果[1] 状态 = %s, 期望 failed:transport", loaded.Results[1].StatusString())
	}
}
