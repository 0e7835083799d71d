package database

import (
	"context"
	"database/sql"
	"fmt"
	"shop-assistant-go/internal/config"
	"shop-assistant-go/pkg/log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// QueryDB 是业务库连接，AI 生成的 SQL 在这里执行。
var QueryDB *sql.DB

// InitQueryDB 打开业务库连接。driver 为 mysql 或 pgx。
func InitQueryDB(ctx context.Context, cfg config.QueryDBConfig) {
	db, err := OpenQueryDB(ctx, cfg)
	if err != nil {
		log.Fatal("failed to connect query database", err)
	}
	QueryDB = db
	log.Infof("Query database (%s) connected successfully", cfg.Driver)
}

// OpenQueryDB 打开并探活一个 database/sql 连接池。
func OpenQueryDB(ctx context.Context, cfg config.QueryDBConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("query database dsn is required")
	}
	driver := cfg.Driver
	if driver == "postgres" {
		driver = "pgx"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open query db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping query db: %w", err)
	}
	return db, nil
}
