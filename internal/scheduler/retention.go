// Package scheduler 负责会话保留等定时任务。
package scheduler

import (
	"context"
	"fmt"
	"shop-assistant-go/internal/config"
	"shop-assistant-go/pkg/log"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionPurger 删除早于 cutoff 的会话及其消息。
type SessionPurger interface {
	PurgeSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention 按 cron 表达式定期清理过期会话。
type Retention struct {
	purger SessionPurger
	days   int
	spec   string
	now    func() time.Time
}

// NewRetention 创建一个新的保留任务。days <= 0 时 Run 直接阻塞到 ctx 结束。
func NewRetention(purger SessionPurger, cfg config.RetentionConfig) *Retention {
	return &Retention{
		purger: purger,
		days:   cfg.Days,
		spec:   cfg.Cron,
		now:    time.Now,
	}
}

// Enabled 报告是否配置了保留天数。
func (r *Retention) Enabled() bool {
	return r.days > 0
}

// Cutoff 返回当前时刻对应的清理分界点。
func (r *Retention) Cutoff() time.Time {
	return r.now().AddDate(0, 0, -r.days)
}

// PurgeOnce 执行一次清理。
func (r *Retention) PurgeOnce(ctx context.Context) (int64, error) {
	if !r.Enabled() {
		return 0, nil
	}
	cutoff := r.Cutoff()
	n, err := r.purger.PurgeSessionsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("清理过期会话失败: %w", err)
	}
	log.Infof("已清理 %d 个早于 %s 的会话", n, cutoff.Format(time.DateTime))
	return n, nil
}

// Run 启动 cron 调度并阻塞直到 ctx 结束。
func (r *Retention) Run(ctx context.Context) error {
	if !r.Enabled() {
		log.Info("未配置会话保留天数，跳过定时清理")
		<-ctx.Done()
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.spec, func() {
		if _, err := r.PurgeOnce(ctx); err != nil {
			log.Errorf("定时清理失败: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("无效的 cron 表达式 %q: %w", r.spec, err)
	}

	c.Start()
	log.Infof("会话保留任务已启动: 保留 %d 天, cron=%q", r.days, r.spec)
	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("会话保留任务已停止")
	return nil
}
