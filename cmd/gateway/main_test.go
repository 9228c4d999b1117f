package main

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/domain"
	pubmock "github.com/c12qe/c12sim-go/internal/publisher/mock"
)

func TestNewLogger_Verbose(t *testing.T) {
	if !newLogger(true).Core().Enabled(zap.DebugLevel) {
		t.Error("expected verbose logger to emit debug entries")
	}
	if newLogger(false).Core().Enabled(zap.DebugLevel) {
		t.Error("expected production logger to drop debug entries")
	}
}

func TestHealthChecks_IncludeBroker(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	pub := pubmock.NewMockPublisher()
	checks := healthChecks(ok, ok, pub, ok)

	for _, name := range []string{"postgres", "redis", "rabbitmq", "simulator"} {
		if _, found := checks[name]; !found {
			t.Errorf("expected %s check", name)
		}
	}
	if err := checks["rabbitmq"](context.Background()); err != nil {
		t.Errorf("expected healthy broker, got %v", err)
	}

	pub.PingErr = domain.ErrPublishFailed
	if err := checks["rabbitmq"](context.Background()); !errors.Is(err, domain.ErrPublishFailed) {
		t.Errorf("expected broker failure to surface, got %v", err)
	}
}
