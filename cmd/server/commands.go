package main

import (
	"fmt"
	"shop-assistant-go/internal/config"
	"shop-assistant-go/pkg/database"
	"shop-assistant-go/pkg/log"
	"shop-assistant-go/pkg/token"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务、审计消费者与定时清理任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新 chat_sessions / chat_messages 表",
	RunE: func(cmd *cobra.Command, args []string) error {
		database.InitMySQL(config.Conf.Database.MySQL.DSN)
		if err := database.AutoMigrate(database.DB); err != nil {
			return fmt.Errorf("迁移会话表失败: %w", err)
		}
		log.Info("会话表迁移完成")
		return nil
	},
}

var (
	tokenUsername string
	tokenRole     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "为运营人员签发 access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenRole != token.RoleOperator && tokenRole != token.RoleAdmin {
			return fmt.Errorf("未知角色 %q，可选 %s 或 %s", tokenRole, token.RoleOperator, token.RoleAdmin)
		}
		cfg := config.Conf.JWT
		jwtManager := token.NewJWTManager(cfg.Secret, cfg.AccessTokenExpireHours)
		t, err := jwtManager.GenerateToken(tokenUsername, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUsername, "username", "u", "", "运营人员用户名")
	tokenCmd.Flags().StringVarP(&tokenRole, "role", "r", token.RoleOperator, "角色: operator | admin")
	_ = tokenCmd.MarkFlagRequired("username")
}
