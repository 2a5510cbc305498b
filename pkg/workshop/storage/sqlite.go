package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nemonet1337/zaiRepairKit/pkg/workshop"
)

// 組み込みのLOWER()はASCIIしか変換しないためUnicode対応版を登録
const sqliteLowerFunc = "lower_unicode"

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	sqlite.MustRegisterDeterministicScalarFunction(sqliteLowerFunc, 1, lowerUnicode)
}

func lowerUnicode(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// 単一接続のBEGIN IMMEDIATEがすべての書き込みを直列化する
var sqliteDialect = &dialect{
	name:          "sqlite",
	lockStatement: func(int64) string { return "" },
	lower:         sqliteLowerFunc,
	classify:      classifySQLiteError,
}

// NewSQLiteStorage opens a SQLite database at path (":memory:" for an in-memory store)
// pathのSQLiteデータベースを開く（":memory:"でインメモリ）
func NewSQLiteStorage(ctx context.Context, path string, logger *zap.Logger) (*SQLStorage, error) {
	db, err := sqlx.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// インメモリDBは接続ごとに別物になるため接続は1本に固定
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("PRAGMA設定に失敗しました (%s): %w", pragma, err)
		}
	}

	return newSQLStorage(db, sqliteDialect, logger), nil
}

func sqliteDSN(path string) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(10000)")
	params.Set("_txlock", "immediate")
	params.Set("_time_format", "sqlite")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

// classifySQLiteError maps SQLite result codes to domain errors
// SQLiteの結果コードをドメインエラーに変換
func classifySQLiteError(op string, err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return workshop.NewStorageError(op, "データベース操作に失敗しました", err)
	}

	code := sqliteErr.Code()
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return conflictFromColumn(op, sqliteErr.Error(), err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return workshop.NewNotFoundError(referencedResource(op), "")
	}

	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return workshop.NewConcurrencyError(op, "database", "データベースがロックされています", err)
	}
	return workshop.NewStorageError(op, "データベース操作に失敗しました", err)
}

// referencedResource guesses the missing parent from a constraint name or operation
func referencedResource(hint string) string {
	switch {
	case strings.Contains(hint, "job"):
		return "repair_job"
	case strings.Contains(hint, "pouch"):
		return "pouch"
	case strings.Contains(hint, "category"):
		return "category"
	}
	return "item"
}
