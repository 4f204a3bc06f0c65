package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pathcompare/internal/apply"
	"pathcompare/internal/comparator"
	"pathcompare/internal/config"
	"pathcompare/internal/logger"
	"pathcompare/internal/schedule"
)

var (
	cronSpec    string
	profilesURL string

	watchCmd = &cobra.Command{
		Use:   "watch <target>",
		Short: "按 cron 计划周期性执行比较",
		Long: `按 cron 表达式（支持秒级精度）周期性对目标执行完整的比较运行，
结果持久化到数据库，可用 history 或 serve 查询。
配置 --profiles-url 后每轮运行前会拉取最新的 profile 集。`,
		Example: `  pathcompare watch 1.1.1.1 --cron "0 0 * * * *" --profile mtu1500=mtu:1500 --profile mtu9000=mtu:9000`,
		Args:    cobra.ExactArgs(1),
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
			if !cmd.Flags().Changed("profiles-url") {
				profilesURL = cfg.ProfilesURL
			}

			applier, err := apply.New(cfg.Apply)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}

			comp := comparator.New(cfg, applier)
			if noDiscover {
				comp.Discoverer = nil
			}

			manager := schedule.NewManager(comp, GetStore(), cfg.OutputDir)
			if err := manager.Schedule(cronSpec, target, profiles, profilesURL); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			manager.Start()

			// 等待中断信号
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			logger.Info("定时比较运行中，按 Ctrl+C 停止...")
			<-sigChan

			logger.Info("收到停止信号，正在关闭...")
			manager.Stop()
		},
	}
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringArrayVarP(&profileFlags, "profile", "p", nil,
		"profile 定义，格式 name=key:val[,key:val...]，可重复")
	watchCmd.Flags().StringVar(&cronSpec, "cron", "0 0 * * * *", "cron 表达式（秒级精度，默认每小时）")
	watchCmd.Flags().StringVar(&profilesURL, "profiles-url", "", "远程 profile 配置地址（每轮运行前刷新）")
	watchCmd.Flags().IntVar(&probeCount, "probe-count", 100, "延迟探测包数量")
	watchCmd.Flags().IntVar(&probeTimeout, "probe-timeout", 2, "单包超时（秒）")
	watchCmd.Flags().IntVar(&trials, "trials", 3, "吞吐量测试轮数")
	watchCmd.Flags().Int64Var(&payloadBytes, "payload-bytes", 10*1024*1024, "单轮下载字节上限")
	watchCmd.Flags().StringVar(&payloadURL, "payload-url", "", "下载地址（默认 http://<target>/）")
	watchCmd.Flags().IntVar(&applyTimeout, "apply-timeout", 120, "参数应用等待超时（秒）")
	watchCmd.Flags().StringVarP(&outputDir, "output", "o", "./results", "结果输出目录")
	watchCmd.Flags().BoolVar(&noDiscover, "no-discover", false, "禁用路径MTU探测")
}
