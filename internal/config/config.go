// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"log/slog"
	"os"
	"strconv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string

	// Rate Limit（req/min/クライアント）
	RateLimitPerMinute int
}

// Load は環境変数からConfigを読み込む。
// DATABASE_URLの未設定は起動を中断せず、警告ログのみ出力する。
func Load() *Config {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set; database operations will fail until it is provided")
	}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 120)

	return cfg
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
