package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pathcompare/internal/api"
	"pathcompare/internal/logger"
)

var (
	apiPort int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "启动只读查询 API",
		Long:  "启动 HTTP JSON API，提供历史运行记录和最近日志的只读查询。",
		Run: func(cmd *cobra.Command, args []string) {
			if err := InitSystem(); err != nil {
				fmt.Fprintf(os.Stderr, "系统初始化失败: %v\n", err)
				os.Exit(1)
			}

			server := api.NewServer(GetStore(), apiPort)
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "启动 API 服务失败: %v\n", err)
				os.Exit(1)
			}

			// 等待中断信号
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			logger.Info("API 服务运行中，按 Ctrl+C 停止...")
			<-sigChan

			logger.Info("收到停止信号，正在关闭...")
			server.Stop()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&apiPort, "port", 8080, "API 监听端口")
}
