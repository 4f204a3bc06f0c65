package apply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"pathcompare/internal/config"
)

func testProfile() config.Profile {
	return config.Profile{Name: "tuned", Params: map[string]string{"mtu": "9000"}}
}

func TestNewApplierModes(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ApplyConfig
		wantErr bool
	}{
		{name: "default is manual", cfg: config.ApplyConfig{}},
		{name: "manual", cfg: config.ApplyConfig{Mode: "manual"}},
		{name: "command with command", cfg: config.ApplyConfig{Mode: "command", Command: "true"}},
		{name: "command without command", cfg: config.ApplyConfig{Mode: "command"}, wantErr: true},
		{name: "http with url", cfg: config.ApplyConfig{Mode: "http", URL: "http://127.0.0.1/reload"}},
		{name: "http without url", cfg: config.ApplyConfig{Mode: "http"}, wantErr: true},
		{name: "unknown mode", cfg: config.ApplyConfig{Mode: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier, err := New(tt.cfg)
			if tt.wantErr {
				var cfgErr *config.ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("New(%+v) 应返回 ConfigError, 实际 %v", tt.cfg, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%+v) 返回错误: %v", tt.cfg, err)
			}
			if applier == nil {
				t.Fatal("New 返回 nil Applier")
			}
		})
	}
}

func TestCommandApplierEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("命令模式依赖 sh")
	}

	a := &CommandApplier{Command: `test "$PROFILE_NAME" = tuned && test "$PROFILE_MTU" = 9000`}
	if err := a.Apply(context.Background(), testProfile()); err != nil {
		t.Fatalf("profile 参数应以环境变量注入: %v", err)
	}
}

func TestCommandApplierFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("命令模式依赖 sh")
	}

	a := &CommandApplier{Command: "exit 3"}
	if err := a.Apply(context.Background(), testProfile()); err == nil {
		t.Fatal("非零退出码应返回错误")
	}
}

func TestCommandApplierTimeoutBounded(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("命令模式依赖 sh")
	}

	a := &CommandApplier{Command: "sleep 5"}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := a.Apply(ctx, testProfile())
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("超时应返回 DeadlineExceeded, 实际 %v", err)
	}
	// WaitDelay 限定被杀死命令的收尾等待，不会等满 sleep 的 5 秒
	if elapsed > 4*time.Second {
		t.Errorf("等待未被限定: 耗时 %v", elapsed)
	}
}

func TestHTTPApplier(t *testing.T) {
	var got applyPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("解析请求体失败: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := &HTTPApplier{URL: srv.URL, client: srv.Client()}
	if err := a.Apply(context.Background(), testProfile()); err != nil {
		t.Fatalf("Apply 返回错误: %v", err)
	}

	if got.Name != "tuned" || got.Params["mtu"] != "9000" {
		t.Errorf("请求体 = %+v, 期望 name=tuned mtu=9000", got)
	}
}

func TestHTTPApplierServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := &HTTPApplier{URL: srv.URL, client: srv.Client()}
	if err := a.Apply(context.Background(), testProfile()); err == nil {
		t.Fatal("非 2xx 状态码应返回错误")
	}
}

func TestManualApplierConfirm(t *testing.T) {
	var out bytes.Buffer
	a := NewManualApplier(strings.NewReader("\n"), &out)

	if err := a.Apply(context.Background(), testProfile()); err != nil {
		t.Fatalf("Apply 返回错误: %v", err)
	}
	if !strings.Contains(out.String(), "tuned") {
		t.Errorf("提示中应包含 profile 名称, 实际: %q", out.String())
	}
}

func TestManualApplierStaleInputDiscarded(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	var out bytes.Buffer
	a := NewManualApplier(pr, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Apply(ctx, testProfile()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("超时应返回 DeadlineExceeded, 实际 %v", err)
	}

	// 操作员在超时后才按下回车
	go pw.Write([]byte("\n"))
	time.Sleep(50 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- a.Apply(context.Background(), testProfile())
	}()

	// 迟到的回车不应确认新一轮
	select {
	case err := <-done:
		t.Fatalf("迟到的输入不应确认新一轮: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	if _, err := pw.Write([]byte("\n")); err != nil {
		t.Fatalf("写入确认失败: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("新的确认应当成功: %v", err)
	}
}
