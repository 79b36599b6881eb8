// Package main is the entry point for the notestack API server.
//
// main stays thin: load the environment, build the server config, hand off
// to internal/server. All wiring lives in the server package.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tahmid/notestack/internal/blob"
	"github.com/tahmid/notestack/internal/server"
)

func main() {
	// .env is a local-development convenience; in production the variables
	// come from the real environment and the file simply doesn't exist.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (server.Config, error) {
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return server.Config{}, fmt.Errorf("invalid PORT %q", portStr)
		}
		port = p
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return server.Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	frontendURL := envOr("FRONTEND_URL", "http://localhost:3000")
	apiBase := envOr("API_BASE_URL", fmt.Sprintf("http://localhost:%d", port))

	var origins []string
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return server.Config{
		Port:           port,
		DBPath:         envOr("DB_PATH", "data/notestack.db"),
		JWTSecret:      jwtSecret,
		FrontendURL:    frontendURL,
		AllowedOrigins: origins,

		Blob: blob.MinioConfig{
			Endpoint:  envOr("S3_ENDPOINT", "localhost:9000"),
			Region:    envOr("S3_REGION", "us-east-1"),
			Bucket:    envOr("S3_BUCKET", "notestack"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			UseSSL:    os.Getenv("S3_USE_SSL") == "true",
		},

		GoogleClientID:        os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:    os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:     envOr("GOOGLE_CALLBACK_URL", apiBase+"/api/auth/google/callback"),
		MicrosoftClientID:     os.Getenv("MICROSOFT_CLIENT_ID"),
		MicrosoftClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET"),
		MicrosoftCallbackURL:  envOr("MICROSOFT_CALLBACK_URL", apiBase+"/api/auth/microsoft/callback"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
