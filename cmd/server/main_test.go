package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func setServerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("STORAGE_DSN", filepath.Join(t.TempDir(), "auth.db"))
	t.Setenv("PORT", "0")
}

func hasMessage(hook *test.Hook, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

func TestRunClosesStoreWhenLimiterSetupFails(t *testing.T) {
	setServerEnv(t)
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("REDIS_ENDPOINT", "127.0.0.1:1")

	logger, hook := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, logger); err == nil {
		t.Fatal("expected limiter setup error")
	}
	if !hasMessage(hook, "SQL store closed") {
		t.Fatal("store was not closed after setup failure")
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	setServerEnv(t)

	logger, hook := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, logger) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	if !hasMessage(hook, "SQL store closed") {
		t.Fatal("store was not closed on shutdown")
	}
}

func TestRunRejectsMissingSecret(t *testing.T) {
	setServerEnv(t)
	t.Setenv("JWT_SECRET_KEY", "")

	logger, _ := test.NewNullLogger()
	if err := run(context.Background(), logger); err == nil {
		t.Fatal("expected configuration error")
	}
}
