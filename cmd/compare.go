package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pathcompare/internal/apply"
	"pathcompare/internal/comparator"
	"pathcompare/internal/config"
	"pathcompare/internal/logger"
	"pathcompare/internal/report"
)

var (
	profileFlags []string
	probeCount   int
	probeTimeout int
	trials       int
	payloadBytes int64
	payloadURL   string
	applyTimeout int
	outputDir    string
	noDiscover   bool

	compareCmd = &cobra.Command{
		Use:   "compare <target>",
		Short: "对目标执行一次路径质量比较",
		Long: `在每个 profile 下依次执行 应用参数 -> 延迟探测 -> 吞吐量测试 -> 路径MTU探测，
结果写入结果目录并持久化到数据库。

退出码: 0 全部 profile 成功; 1 存在失败或被取消的 profile; 2 配置错误。`,
		Example: `  pathcompare compare 1.1.1.1 --profile mtu1500=mtu:1500 --profile mtu9000=mtu:9000
  pathcompare compare example.com --profile base= --probe-count 50 --trials 5`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			target := args[0]

			if err := InitSystem(); err != nil {
				fmt.Fprintf(os.Stderr, "系统初始化失败: %v\n", err)
				os.Exit(1)
			}

			profiles, err := config.ParseProfiles(profileFlags)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}

			cfg := GetConfig()
			applyFlagOverrides(cmd, cfg)

			applier, err := apply.New(cfg.Apply)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}

			comp := comparator.New(cfg, applier)
			if noDiscover {
				comp.Discoverer = nil
			}

			// Ctrl+C 取消: 当前探测做完，剩余 profile 记为 cancelled
			ctx, cancel := context.WithCancel(context.Background())
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				logger.Warn("收到停止信号，当前探测结束后停止...")
				cancel()
			}()
			defer cancel()

			rep, err := comp.Run(ctx, target, profiles)
			if err != nil {
				var cfgErr *config.ConfigError
				if errors.As(err, &cfgErr) {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(2)
				}
				fmt.Fprintf(os.Stderr, "运行失败: %v\n", err)
				os.Exit(1)
			}

			if _, err := report.Write(cfg.OutputDir, rep); err != nil {
				logger.Errorf("写入结果失败: %v", err)
			}
			if err := GetStore().SaveReport(rep); err != nil {
				logger.Errorf("持久化结果失败: %v", err)
			}

			printSummary(rep)

			if rep.HasFailures() {
				os.Exit(1)
			}
		},
	}
)

// applyFlagOverrides 命令行 flag 覆盖环境配置
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("probe-count") {
		cfg.Probe.Count = probeCount
	}
	if cmd.Flags().Changed("probe-timeout") {
		cfg.Probe.Timeout = probeTimeout
	}
	if cmd.Flags().Changed("trials") {
		cfg.Throughput.Trials = trials
	}
	if cmd.Flags().Changed("payload-bytes") {
		cfg.Throughput.PayloadBytes = payloadBytes
	}
	if cmd.Flags().Changed("payload-url") {
		cfg.Throughput.URL = payloadURL
	}
	if cmd.Flags().Changed("apply-timeout") {
		cfg.Apply.Timeout = applyTimeout
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputDir = outputDir
	}
}

// printSummary 打印比较结果摘要
func printSummary(rep *report.Report) {
	fmt.Printf("\n目标: %s  运行ID: %s\n", rep.Target, rep.ID)
	fmt.Printf("%-16s %-28s %8s %12s %12s %10s\n",
		"PROFILE", "STATUS", "LOSS", "AVG RTT", "RATE", "PATH MTU")

	for _, res := range rep.Results {
		loss, avgRtt, rate, mtu := "-", "-", "-", "unknown"
		if res.Latency != nil {
			loss = fmt.Sprintf("%.1f%%", res.Latency.LossRatio()*100)
			if res.Latency.Received > 0 {
				avgRtt = res.Latency.AvgRtt.String()
			}
		}
		if res.Throughput != nil {
			if avg := res.Throughput.AvgRate(); avg > 0 {
				rate = formatRate(avg)
			}
		}
		if res.PathMTU != 0 {
			mtu = fmt.Sprintf("%d", res.PathMTU)
		}

		fmt.Printf("%-16s %-28s %8s %12s %12s %10s\n",
			res.Profile.Name, res.StatusString(), loss, avgRtt, rate, mtu)
	}
	fmt.Println()
}

// formatRate 速率可读格式（输入字节/秒）
func formatRate(bytesPerSec float64) string {
	kbps := bytesPerSec / 1024
	if kbps >= 1024 {
		return fmt.Sprintf("%.1fMB/s", kbps/1024)
	}
	return fmt.Sprintf("%.0fKB/s", kbps)
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringArrayVarP(&profileFlags, "profile", "p", nil,
		"profile 定义，格式 name=key:val[,key:val...]，可重复")
	compareCmd.Flags().IntVar(&probeCount, "probe-count", 100, "延迟探测包数量")
	compareCmd.Flags().IntVar(&probeTimeout, "probe-timeout", 2, "单包超时（秒）")
	compareCmd.Flags().IntVar(&trials, "trials", 3, "吞吐量测试轮数")
	compareCmd.Flags().Int64Var(&payloadBytes, "payload-bytes", 10*1024*1024, "单轮下载字节上限")
	compareCmd.Flags().StringVar(&payloadURL, "payload-url", "", "下载地址（默认 http://<target>/）")
	compareCmd.Flags().IntVar(&applyTimeout, "apply-timeout", 120, "参数应用等待超时（秒）")
	compareCmd.Flags().StringVarP(&outputDir, "output", "o", "./results", "结果输出目录")
	compareCmd.Flags().BoolVar(&noDiscover, "no-discover", false, "禁用路径MTU探测")
}
