package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "smtp", FailureThreshold: 2, OpenTimeout: time.Minute})
	boom := errors.New("dial tcp: connection refused")

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, CBClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "smtp", FailureThreshold: 1, OpenTimeout: time.Minute})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errors.New("fail") })
	assert.Equal(t, CBOpen, cb.State())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, CBHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "smtp", FailureThreshold: 1, OpenTimeout: time.Minute})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errors.New("fail") })
	now = now.Add(time.Minute)
	_ = cb.Execute(func() error { return errors.New("still failing") })
	assert.Equal(t, CBOpen, cb.State())
}
