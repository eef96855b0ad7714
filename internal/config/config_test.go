package config

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Storage.Driver != StorageSQLite {
		t.Errorf("storage driver = %q", cfg.Storage.Driver)
	}
	if cfg.RateLimit.Backend != LimiterMemory {
		t.Errorf("rate limit backend = %q", cfg.RateLimit.Backend)
	}
	if cfg.RateLimit.SendInterval != 60*time.Second {
		t.Errorf("send interval = %v", cfg.RateLimit.SendInterval)
	}
	if cfg.JWT.Expiry != 7*24*time.Hour {
		t.Errorf("jwt expiry = %v", cfg.JWT.Expiry)
	}
	if cfg.Code.Expiry != 5*time.Minute {
		t.Errorf("code expiry = %v", cfg.Code.Expiry)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("allowed origins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("STORAGE_DSN", "postgres://localhost/taobei")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("CODE_SEND_INTERVAL", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example,http://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Storage.Driver != StoragePostgres || cfg.Storage.DSN != "postgres://localhost/taobei" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.RateLimit.Backend != LimiterRedis || cfg.RateLimit.SendInterval != 30*time.Second {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("allowed origins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET_KEY"},
		{"short secret", map[string]string{"JWT_SECRET_KEY": "short"}, "at least 32 bytes"},
		{"bad driver", map[string]string{"JWT_SECRET_KEY": testSecret, "STORAGE_DRIVER": "mysql"}, "STORAGE_DRIVER"},
		{"bad limiter", map[string]string{"JWT_SECRET_KEY": testSecret, "RATE_LIMIT_BACKEND": "etcd"}, "RATE_LIMIT_BACKEND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}
