package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote API
	APIBaseURL   string
	APITimeout   time.Duration
	APIRateLimit float64
	APIRateBurst int
	// APIRetryMax はGETリクエストの最大再試行回数。0の場合は再試行しない。
	APIRetryMax     int
	APIRetryBackoff time.Duration

	// Session
	SessionFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Metrics
	MetricsAddr string

	// Store
	StoreBuffer int
}

// Load は環境変数からConfigを読み込む。
// envFilesが指定された場合は先にgodotenvで読み込む（既存の環境変数は上書きしない）。
// 存在しないファイルは無視する。
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg := &Config{}

	cfg.APIBaseURL = getEnvString("JOBFINDER_API_URL", "http://localhost:3000")
	if err := validateBaseURL(cfg.APIBaseURL); err != nil {
		return nil, err
	}

	cfg.LogFormat = getEnvString("LOG_FORMAT", "text")
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	// Optional fields with defaults
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 10*time.Second)
	cfg.APIRateLimit = getEnvFloat("API_RATE_LIMIT", 10)
	cfg.APIRateBurst = getEnvInt("API_RATE_BURST", 5)
	cfg.APIRetryMax = getEnvInt("API_RETRY_MAX", 2)
	cfg.APIRetryBackoff = getEnvDuration("API_RETRY_BACKOFF", 200*time.Millisecond)
	cfg.SessionFile = getEnvString("SESSION_FILE", defaultSessionFile())
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnvString("METRICS_ADDR", "")
	cfg.StoreBuffer = getEnvInt("STORE_BUFFER", 64)

	return cfg, nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("JOBFINDER_API_URL is invalid: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("JOBFINDER_API_URL must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

// defaultSessionFile はOSのユーザー設定ディレクトリ配下のセッションファイルパスを返す。
// 設定ディレクトリが解決できない場合はカレントディレクトリに置く。
func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".jobfinder-session.json"
	}
	return filepath.Join(dir, "jobfinder", "session.json")
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
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
