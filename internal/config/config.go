package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージバックエンドの選択肢。
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// ストレージ形状の選択肢。
const (
	// ShapeDocument はユーザードキュメント全体の上書き保存のみを行う。
	ShapeDocument = "document"
	// ShapeSessionLog はドキュメント保存に加えて、確定したセッションを
	// `sessions:<username>` リストへ追記する（エッジファンクション互換）。
	ShapeSessionLog = "sessionlog"
)

// 永続化ポリシーの選択肢。
const (
	SavePolicyDrop    = "drop"
	SavePolicyBackoff = "backoff"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend string // redis | postgres | memory
	StorageShape   string // document | sessionlog
	RedisAddr      string
	RedisPassword  string
	DatabaseURL    string

	// Save policy
	SavePolicy       string // drop | backoff
	SaveRetryMax     int
	SaveRetryInitial time.Duration

	// Session
	SessionMaxAge int

	// Rate Limit
	RateLimitGeneral int
	RateLimitExport  int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.StorageBackend = getEnvString("STORAGE_BACKEND", BackendRedis)
	switch cfg.StorageBackend {
	case BackendRedis:
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	case BackendPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendMemory:
		// 開発・テスト用: 追加の必須変数なし
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND: %q", cfg.StorageBackend)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.StorageShape = getEnvString("STORAGE_SHAPE", ShapeDocument)
	if cfg.StorageShape != ShapeDocument && cfg.StorageShape != ShapeSessionLog {
		return nil, fmt.Errorf("unknown STORAGE_SHAPE: %q", cfg.StorageShape)
	}

	cfg.SavePolicy = getEnvString("SAVE_POLICY", SavePolicyDrop)
	if cfg.SavePolicy != SavePolicyDrop && cfg.SavePolicy != SavePolicyBackoff {
		return nil, fmt.Errorf("unknown SAVE_POLICY: %q", cfg.SavePolicy)
	}

	// セッションストアもRedisを使うため、memory/postgres以外では流用する
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")

	// Optional fields with defaults
	cfg.SaveRetryMax = getEnvInt("SAVE_RETRY_MAX", 5)
	cfg.SaveRetryInitial = getEnvDuration("SAVE_RETRY_INITIAL", 500*time.Millisecond)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitExport = getEnvInt("RATE_LIMIT_EXPORT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
