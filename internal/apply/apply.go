package apply

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"pathcompare/internal/config"
	"pathcompare/internal/logger"
)

// Applier profile 参数应用协作方
// 实现方负责让外部链路配置生效（重载代理进程等），本工具只等待其完成
type Applier interface {
	Apply(ctx context.Context, profile config.Profile) error
}

// New 根据配置创建 Applier
func New(cfg config.ApplyConfig) (Applier, error) {
	switch cfg.Mode {
	case "manual", "":
		return NewManualApplier(os.Stdin, os.Stdout), nil
	case "command":
		if cfg.Command == "" {
			return nil, config.NewConfigError("APPLY_MODE=command 需要设置 APPLY_COMMAND")
		}
		return &CommandApplier{Command: cfg.Command}, nil
	case "http":
		if cfg.URL == "" {
			return nil, config.NewConfigError("APPLY_MODE=http 需要设置 APPLY_URL")
		}
		return &HTTPApplier{
			URL:    cfg.URL,
			client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		}, nil
	default:
		return nil, config.NewConfigError("未知的 APPLY_MODE: %s", cfg.Mode)
	}
}

// ManualApplier 人工确认模式
// 打印待应用的参数，等待操作员自行调整外部配置后回车确认
type ManualApplier struct {
	in  io.Reader
	out io.Writer

	once    sync.Once
	replies chan error
}

// NewManualApplier 创建人工确认模式的 Applier
func NewManualApplier(in io.Reader, out io.Writer) *ManualApplier {
	return &ManualApplier{
		in:      in,
		out:     out,
		replies: make(chan error, 1),
	}
}

// Apply 提示操作员应用参数并等待确认
// 输入由单个常驻 goroutine 读取，上一轮超时后迟到的回车在下一轮开始时丢弃
func (a *ManualApplier) Apply(ctx context.Context, profile config.Profile) error {
	a.once.Do(func() {
		reader := bufio.NewReader(a.in)
		go func() {
			for {
				_, err := reader.ReadString('\n')
				a.replies <- err
				if err != nil {
					return
				}
			}
		}()
	})

	// 丢弃迟到的确认
	select {
	case <-a.replies:
	default:
	}

	fmt.Fprintf(a.out, "\n>>> 请应用 profile [%s] 的参数并重载外部进程:\n", profile.Name)
	for key, val := range profile.Params {
		fmt.Fprintf(a.out, "      %s = %s\n", key, val)
	}
	fmt.Fprintf(a.out, ">>> 完成后按回车继续...\n")

	select {
	case err := <-a.replies:
		if err != nil {
			return fmt.Errorf("读取确认输入失败: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CommandApplier 命令模式
// 执行配置的命令，profile 参数以环境变量传入
type CommandApplier struct {
	Command string
}

// Apply 执行应用命令
// 注入 PROFILE_NAME 和 PROFILE_<KEY>（key 转大写）环境变量
func (a *CommandApplier) Apply(ctx context.Context, profile config.Profile) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", a.Command)
	// 命令被杀死后残留子进程可能仍持有输出管道，收尾等待要有上限
	cmd.WaitDelay = 3 * time.Second
	cmd.Env = append(os.Environ(), "PROFILE_NAME="+profile.Name)
	for key, val := range profile.Params {
		cmd.Env = append(cmd.Env, "PROFILE_"+strings.ToUpper(key)+"="+val)
	}

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		logger.Debugf("[APPLY] 命令输出: %s", strings.TrimSpace(string(output)))
	}
	if err != nil {
		// 超时/取消时返回 context 错误，被杀死命令的 ExitError 不携带超时信息
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("应用命令执行失败: %w", err)
	}
	return nil
}

// HTTPApplier HTTP模式
// 将 profile 参数以 JSON POST 到配置的 reload 地址
type HTTPApplier struct {
	URL    string
	client *http.Client
}

type applyPayload struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

// Apply 调用 reload 接口
func (a *HTTPApplier) Apply(ctx context.Context, profile config.Profile) error {
	body, err := json.Marshal(applyPayload{Name: profile.Name, Params: profile.Params})
	if err != nil {
		return fmt.Errorf("序列化参数失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("调用 reload 接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reload 接口状态码异常: %d", resp.StatusCode)
	}
	return nil
}
