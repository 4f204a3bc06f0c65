package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyTarget string
	historyRunID  string

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "查询历史比较记录",
		Long:  "列出数据库中保存的比较运行；--run 指定运行ID时显示该次运行的逐 profile 结果。",
		Run: func(cmd *cobra.Command, args []string) {
			if err := InitSystem(); err != nil {
				fmt.Fprintf(os.Stderr, "系统初始化失败: %v\n", err)
				os.Exit(1)
			}

			if historyRunID != "" {
				showRunDetail(historyRunID)
				return
			}

			runs, err := GetStore().ListRuns(historyLimit, historyTarget)
			if err != nil {
				fmt.Fprintf(os.Stderr, "查询失败: %v\n", err)
				os.Exit(1)
			}
			if len(runs) == 0 {
				fmt.Println("暂无运行记录")
				return
			}

			fmt.Printf("%-38s %-20s %-20s %8s %8s\n",
				"RUN ID", "TARGET", "STARTED", "PROFILES", "FAILED")
			for _, run := range runs {
				fmt.Printf("%-38s %-20s %-20s %8d %8d\n",
					run.ID, run.Target, run.StartedAt, run.ProfileCount, run.FailedCount)
			}
		},
	}
)

// showRunDetail 打印单次运行的逐 profile 结果
func showRunDetail(id string) {
	detail, err := GetStore().GetRun(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询失败: %v\n", err)
		os.Exit(1)
	}
	if detail == nil {
		fmt.Fprintf(os.Stderr, "运行记录不存在: %s\n", id)
		os.Exit(1)
	}

	fmt.Printf("目标: %s  开始: %s  结束: %s\n\n",
		detail.Target, detail.StartedAt, detail.FinishedAt)
	fmt.Printf("%-16s %-28s %8s %12s %12s %10s\n",
		"PROFILE", "STATUS", "LOSS", "AVG RTT", "RATE", "PATH MTU")

	for _, row := range detail.Profiles {
		rate, mtu := "-", "unknown"
		if row.AvgRate > 0 {
			rate = formatRate(row.AvgRate)
		}
		if row.PathMTU != 0 {
			mtu = fmt.Sprintf("%d", row.PathMTU)
		}
		fmt.Printf("%-16s %-28s %7.1f%% %10.1fms %12s %10s\n",
			row.Name, row.Status, row.Loss*100, row.AvgRttMs, rate, mtu)
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "显示的记录条数")
	historyCmd.Flags().StringVarP(&historyTarget, "target", "t", "", "按目标过滤")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "显示指定运行ID的详细结果")
}
