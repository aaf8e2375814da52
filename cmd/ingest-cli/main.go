// Package main 批量摄取命令行入口。
// 用法：ingest-cli <video-url> [<video-url> ...]
package main

import (
	"context"
	"fmt"
	"os"

	"video-rag-qa-api/internal/app"
	"video-rag-qa-api/internal/config"
	"video-rag-qa-api/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ingest-cli <video-url> [<video-url> ...]")
		os.Exit(2)
	}

	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize app", err)
	}
	defer application.Close()

	reports, err := application.Pipeline.Run(ctx, os.Args[1:])
	for _, r := range reports {
		line := fmt.Sprintf("%s\t%s", r.Status, r.VideoURL)
		if r.Status == "indexed" {
			line += fmt.Sprintf("\t%d chunks", r.ChunkCount)
		} else if r.Error != "" {
			line += "\t" + r.Error
		}
		fmt.Println(line)
	}
	if err != nil {
		logger.Error(ctx, "ingest batch failed", err)
		os.Exit(1)
	}
}
