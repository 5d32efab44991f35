// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Check
	CheckTimeout time.Duration
	CheckMaxSize int64

	// Refresh
	RefreshMaxConcurrent int
	RefreshInterval      time.Duration
	HistoryLimit         int

	// Session cleanup
	SessionCleanupInterval time.Duration

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitRefresh int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// source は設定値の取得元。環境変数がYAMLファイルの値より優先される。
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

// Load はCONFIG_FILE（任意）と環境変数からConfigを読み込む。
// 必須項目が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = src.get("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = src.getInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = src.getInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = src.getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.CheckTimeout = src.getDuration("CHECK_TIMEOUT", 12*time.Second)
	cfg.CheckMaxSize = src.getInt64("CHECK_MAX_SIZE", 5242880)
	cfg.RefreshMaxConcurrent = src.getInt("REFRESH_MAX_CONCURRENT", 5)
	cfg.RefreshInterval = src.getDuration("REFRESH_INTERVAL", 5*time.Minute)
	cfg.HistoryLimit = src.getInt("HISTORY_LIMIT", 100)
	cfg.SessionCleanupInterval = src.getDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.RateLimitGeneral = src.getInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitRefresh = src.getInt("RATE_LIMIT_REFRESH", 10)
	cfg.LogLevel = src.getString("LOG_LEVEL", "info")
	cfg.ServerPort = src.getString("SERVER_PORT", "8080")
	cfg.CookieSecure = src.getBool("COOKIE_SECURE", false)
	cfg.CookieDomain = src.getString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = src.getString("CORS_ALLOWED_ORIGIN", "")

	return cfg, nil
}

// loadFile はYAMLの設定ファイルを読み込む。
// キーは環境変数名の小文字表記（例: database_url）で記述する。
func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}

func (s source) getString(key, defaultVal string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return defaultVal
}

func (s source) getInt(key string, defaultVal int) int {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) getInt64(key string, defaultVal int64) int64 {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) getBool(key string, defaultVal bool) bool {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func (s source) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
