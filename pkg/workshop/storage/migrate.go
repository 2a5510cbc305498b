package storage

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// MigrationResult reports one migration file
// マイグレーションファイルごとの結果
type MigrationResult struct {
	Filename string
	Checksum string
	Applied  bool // falseは実行済みでスキップ
}

// Migrate applies pending embedded migrations for the storage's dialect.
// Each file runs in its own transaction together with its schema_migrations row.
// 未実行のマイグレーションを適用（ファイルごとに1トランザクション）
func (s *SQLStorage) Migrate(ctx context.Context) ([]MigrationResult, error) {
	if err := s.createMigrationTable(ctx); err != nil {
		return nil, err
	}

	dir := path.Join("migrations", s.dialect.name)
	files, err := fs.Glob(migrationFiles, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("マイグレーションファイル検索エラー: %w", err)
	}
	sort.Strings(files)

	executed, err := s.executedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]MigrationResult, 0, len(files))
	for _, file := range files {
		filename := path.Base(file)
		content, err := migrationFiles.ReadFile(file)
		if err != nil {
			return results, fmt.Errorf("ファイル読み込みエラー %s: %w", filename, err)
		}
		checksum := calculateChecksum(content)

		if previous, ok := executed[filename]; ok {
			if previous != checksum {
				s.logger.Warn("実行済みマイグレーションのチェックサムが一致しません",
					zap.String("filename", filename),
					zap.String("recorded", previous),
					zap.String("current", checksum),
				)
			}
			results = append(results, MigrationResult{Filename: filename, Checksum: checksum})
			continue
		}

		if err := s.applyMigration(ctx, filename, string(content), checksum); err != nil {
			return results, err
		}
		s.logger.Info("マイグレーション完了", zap.String("filename", filename))
		results = append(results, MigrationResult{Filename: filename, Checksum: checksum, Applied: true})
	}

	return results, nil
}

// createMigrationTable マイグレーション履歴テーブルを作成
func (s *SQLStorage) createMigrationTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename    VARCHAR(255) PRIMARY KEY,
			checksum    VARCHAR(64) NOT NULL,
			executed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("マイグレーション履歴テーブル作成エラー: %w", err)
	}
	return nil
}

// executedMigrations 実行済みマイグレーションとチェックサムを取得
func (s *SQLStorage) executedMigrations(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Filename string `db:"filename"`
		Checksum string `db:"checksum"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT filename, checksum FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("実行済みマイグレーション取得エラー: %w", err)
	}
	executed := make(map[string]string, len(rows))
	for _, r := range rows {
		executed[r.Filename] = r.Checksum
	}
	return executed, nil
}

func (s *SQLStorage) applyMigration(ctx context.Context, filename, content, checksum string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始エラー %s: %w", filename, err)
	}

	if _, err := tx.ExecContext(ctx, content); err != nil {
		tx.Rollback()
		return fmt.Errorf("マイグレーション実行エラー %s: %w", filename, err)
	}

	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO schema_migrations (filename, checksum) VALUES (?, ?)`),
		filename, checksum,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("マイグレーション履歴記録エラー %s: %w", filename, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("マイグレーションコミットエラー %s: %w", filename, err)
	}
	return nil
}

// calculateChecksum ファイル内容のSHA256チェックサムを計算
func calculateChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
