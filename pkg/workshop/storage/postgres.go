package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiRepairKit/pkg/workshop"
)

// PoolConfig holds connection pool settings
// 接続プール設定
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

var postgresDialect = &dialect{
	name: "postgres",
	lockStatement: func(int64) string {
		return `SELECT pg_advisory_xact_lock(?)`
	},
	lower:    "LOWER",
	classify: classifyPostgresError,
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
// 新しいPostgreSQLストレージインスタンスを作成
func NewPostgreSQLStorage(ctx context.Context, dsn string, pool PoolConfig, logger *zap.Logger) (*SQLStorage, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	// 接続プール設定
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 25
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 10
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return newSQLStorage(db, postgresDialect, logger), nil
}

// classifyPostgresError maps SQLSTATE codes to domain errors
// SQLSTATEコードをドメインエラーに変換
func classifyPostgresError(op string, err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return workshop.NewStorageError(op, "データベース操作に失敗しました", err)
	}

	switch pqErr.Code {
	case "23505": // unique_violation
		return conflictFromColumn(op, pqErr.Constraint+" "+pqErr.Detail, err)
	case "23503": // foreign_key_violation
		return workshop.NewNotFoundError(referencedResource(pqErr.Constraint+" "+pqErr.Detail), "")
	case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
		return workshop.NewConcurrencyError(op, pqErr.Table, "トランザクションが中断されました", err)
	}
	return workshop.NewStorageError(op, "データベース操作に失敗しました", err)
}
