// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionMaxAge int

	// Linear
	LinearAPIURL     string
	LinearIssueLimit int
	LinearRatePerSec float64
	LinearRateBurst  int

	// Generation
	// OpenAIAPIKeyが空でも起動は可能で、生成リクエスト時にSERVICE_MISCONFIGUREDとなる。
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Upstream
	UpstreamTimeout       time.Duration
	AllowPrivateUpstreams bool

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	AppOrigin string
}

// 既定値
const (
	DefaultLinearAPIURL     = "https://api.linear.app/graphql"
	DefaultLinearIssueLimit = 50
	DefaultOpenAIModel      = "gpt-4-turbo-preview"
	DefaultAppOrigin        = "http://app.localhost:3000"
)

var requiredKeys = []string{
	"DATABASE_URL",
	"GOOGLE_CLIENT_ID",
	"GOOGLE_CLIENT_SECRET",
	"GOOGLE_REDIRECT_URL",
	"BASE_URL",
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg := &Config{
		DatabaseURL:           v.GetString("DATABASE_URL"),
		GoogleClientID:        v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:    v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:     v.GetString("GOOGLE_REDIRECT_URL"),
		SessionMaxAge:         positiveInt(v, "SESSION_MAX_AGE", 86400),
		LinearAPIURL:          v.GetString("LINEAR_API_URL"),
		LinearIssueLimit:      positiveInt(v, "LINEAR_ISSUE_LIMIT", DefaultLinearIssueLimit),
		LinearRatePerSec:      positiveFloat(v, "LINEAR_RATE_PER_SEC", 10),
		LinearRateBurst:       positiveInt(v, "LINEAR_RATE_BURST", 20),
		OpenAIAPIKey:          strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
		OpenAIModel:           v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL:         v.GetString("OPENAI_BASE_URL"),
		UpstreamTimeout:       positiveDuration(v, "UPSTREAM_TIMEOUT", 30*time.Second),
		AllowPrivateUpstreams: v.GetBool("ALLOW_PRIVATE_UPSTREAMS"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		ServerPort:            v.GetString("SERVER_PORT"),
		BaseURL:               v.GetString("BASE_URL"),
		CookieDomain:          v.GetString("COOKIE_DOMAIN"),
		AppOrigin:             v.GetString("APP_ORIGIN"),
	}
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LINEAR_API_URL", DefaultLinearAPIURL)
	v.SetDefault("OPENAI_MODEL", DefaultOpenAIModel)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("APP_ORIGIN", DefaultAppOrigin)
	v.SetDefault("ALLOW_PRIVATE_UPSTREAMS", false)
}

// positiveInt は数値として解釈できない値や0以下の値を既定値に置き換える。
func positiveInt(v *viper.Viper, key string, defaultVal int) int {
	if i := v.GetInt(key); i > 0 {
		return i
	}
	return defaultVal
}

func positiveFloat(v *viper.Viper, key string, defaultVal float64) float64 {
	if f := v.GetFloat64(key); f > 0 {
		return f
	}
	return defaultVal
}

func positiveDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	if d := v.GetDuration(key); d > 0 {
		return d
	}
	return defaultVal
}
