package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pathcompare",
	Short: "网络路径质量比较工具",
	Long: `pathcompare 在一组命名的链路配置(profile)下对同一目标执行
固定的探测序列（延迟/丢包、吞吐量、路径MTU），生成结构化的比较报告，
用于评估不同链路参数（如MTU）对路径质量的影响。`,
	Version: "1.0.0",
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
