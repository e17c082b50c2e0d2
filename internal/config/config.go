package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	HTTPAddr string

	RedisURL    string
	DatabaseURL string

	AccountsBaseURL string
	GuestAccess     bool

	AllowedOrigins []string

	MsgOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:    ":8080",
		GuestAccess: true,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.AccountsBaseURL = strings.TrimSpace(os.Getenv("ACCOUNTS_BASE_URL"))
	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	if v := strings.TrimSpace(os.Getenv("GUEST_ACCESS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.GuestAccess = b
		}
	}

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
