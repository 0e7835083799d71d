// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"shop-assistant-go/internal/config"
	"shop-assistant-go/pkg/log"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "shop-assistant",
	Short: "电商后台自然语言数据查询助手",
	Long: `shop-assistant 将运营人员的自然语言提问转换为 SQL，在业务库上执行，
并以文本、表格或图表的形式流式返回结果。

  shop-assistant serve                      # 启动 HTTP 服务（默认）
  shop-assistant migrate                    # 创建会话表
  shop-assistant token --username ayse      # 为运营人员签发 token`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// 1. 初始化配置
		config.Init(configPath)
		// 2. 初始化日志记录器
		log.Init(config.Conf.Log.Level, config.Conf.Log.Format, config.Conf.Log.OutputPath)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs/config.yaml", "配置文件路径")
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func main() {
	// 收到中断信号时取消 ctx，serve 据此优雅停机
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
