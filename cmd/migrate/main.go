package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/nemonet1337/zaiRepairKit/internal/config"
	"github.com/nemonet1337/zaiRepairKit/pkg/workshop/storage"
)

func main() {
	log.Println("zaiRepairKit マイグレーション実行ツール")

	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	switch cfg.Database.Driver {
	case "sqlite":
		log.Printf("データベースに接続中: sqlite://%s", cfg.Database.SQLitePath)
	default:
		log.Printf("データベースに接続中: %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// マイグレーションの詳細はlogで出力するためストレージのログは抑制
	store, err := storage.Open(ctx, storage.Options{
		Driver:     cfg.Database.Driver,
		DSN:        cfg.DSN(),
		SQLitePath: cfg.Database.SQLitePath,
	}, zap.NewNop())
	if err != nil {
		log.Fatal("データベース接続に失敗しました:", err)
	}
	defer store.Close()

	log.Println("データベース接続が確立されました")

	// マイグレーション実行
	results, err := store.Migrate(ctx)
	if err != nil {
		log.Fatal("マイグレーション実行に失敗しました:", err)
	}

	for _, result := range results {
		if result.Applied {
			log.Printf("完了: %s (%s)", result.Filename, result.Checksum[:12])
		} else {
			log.Printf("スキップ (実行済み): %s", result.Filename)
		}
	}

	log.Println("すべてのマイグレーションが完了しました")
}
