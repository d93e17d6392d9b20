package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"

	"github.com/sschepis/symprime-mentor-ai/internal/api"
	"github.com/sschepis/symprime-mentor-ai/internal/auth"
	"github.com/sschepis/symprime-mentor-ai/internal/config"
	"github.com/sschepis/symprime-mentor-ai/internal/realtime"
	"github.com/sschepis/symprime-mentor-ai/internal/storage"
	"github.com/sschepis/symprime-mentor-ai/internal/store"
	"github.com/sschepis/symprime-mentor-ai/internal/trainer"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("symprime: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		// Without a configured secret, tokens do not survive restarts.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.Fatalf("failed to generate token secret: %v", err)
		}
		secret = []byte(hex.EncodeToString(buf))
		logger.Warn("no token secret configured, using a per-process secret")
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	blobs, err := storage.NewBlobStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to open blob store: %v", err)
	}

	broker := realtime.NewBroker()
	authSvc := auth.NewService(db, secret, cfg.TokenTTL)

	tr := trainer.New(db, broker, logger, cfg.TickInterval)
	defer tr.Close()
	if err := tr.Recover(context.Background()); err != nil {
		logger.Error("recover training sessions", "error", err)
	}

	srv := api.NewServer(cfg.ListenAddr, db, authSvc, tr, broker, blobs, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
