package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Options selects and configures a storage backend
// ストレージバックエンドの選択と設定
type Options struct {
	Driver     string // postgres, sqlite
	DSN        string // PostgreSQL接続文字列
	SQLitePath string
	Pool       PoolConfig
}

// Open connects to the backend named by opts.Driver
// opts.Driverで指定されたバックエンドへ接続
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*SQLStorage, error) {
	switch opts.Driver {
	case "postgres":
		return NewPostgreSQLStorage(ctx, opts.DSN, opts.Pool, logger)
	case "sqlite":
		return NewSQLiteStorage(ctx, opts.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("サポートされていないデータベースドライバー: %s", opts.Driver)
	}
}
