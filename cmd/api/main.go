package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"bapflow/actor"
	"bapflow/attachment"
	"bapflow/config"
	"bapflow/db"
	"bapflow/document"
	"bapflow/pkg/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("validate config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.L().Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	actorRepo := actor.NewRepository(pool)
	actorService := actor.NewService(actorRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	directory := actor.NewDirectory(actorRepo)

	attachmentRepo := attachment.NewRepository()
	engine := document.NewEngine(pool, nil, nil, attachmentRepo)

	blobs, err := attachment.NewMinioStore(cfg.Minio)
	if err != nil {
		logger.L().Fatal("bootstrap object store", zap.Error(err))
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		logger.L().Fatal("ensure bucket", zap.Error(err))
	}
	attachmentService := attachment.NewService(pool, attachmentRepo, blobs, engine)

	logger.L().Info("bapflow services ready",
		zap.Bool("actors", actorService != nil),
		zap.Bool("directory", directory != nil),
		zap.Bool("engine", engine != nil),
		zap.Bool("attachments", attachmentService != nil),
	)
}
