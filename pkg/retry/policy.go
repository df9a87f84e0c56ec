package retry

import (
	"math"
	"math/rand/v2"
	"time"

	pkgerrors "github.com/xkayo32/pytake-sub002/pkg/errors"
)

const (
	// MinDelay is the floor applied to jittered delays.
	MinDelay = 100 * time.Millisecond

	jitterSpread = 0.2
)

var randFloat = rand.Float64

// Policy describes how failed webhook deliveries are rescheduled.
// Attempt 0 is the original send; retries are numbered from 1.
type Policy struct {
	MaxRetries          int     `mapstructure:"max_retries" json:"max_retries"`
	InitialDelaySeconds float64 `mapstructure:"initial_delay_seconds" json:"initial_delay_seconds"`
	BackoffMultiplier   float64 `mapstructure:"backoff_multiplier" json:"backoff_multiplier"`
	MaxDelaySeconds     float64 `mapstructure:"max_delay_seconds" json:"max_delay_seconds"`
	Jitter              bool    `mapstructure:"jitter" json:"jitter"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:          3,
		InitialDelaySeconds: 1,
		BackoffMultiplier:   2.0,
		MaxDelaySeconds:     300,
		Jitter:              true,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.MaxRetries < 0:
		return pkgerrors.ErrValidation.WithMessage("retry_policy.max_retries must be non-negative")
	case p.InitialDelaySeconds <= 0:
		return pkgerrors.ErrValidation.WithMessage("retry_policy.initial_delay_seconds must be positive")
	case p.BackoffMultiplier < 1.0:
		return pkgerrors.ErrValidation.WithMessage("retry_policy.backoff_multiplier must be at least 1.0")
	case p.MaxDelaySeconds < p.InitialDelaySeconds:
		return pkgerrors.ErrValidation.WithMessage("retry_policy.max_delay_seconds must be >= initial_delay_seconds")
	}
	return nil
}

func (p Policy) InitialDelay() time.Duration {
	return seconds(p.InitialDelaySeconds)
}

func (p Policy) MaxDelay() time.Duration {
	return seconds(p.MaxDelaySeconds)
}

// ShouldRetry reports whether retry number attempt is still within budget.
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt <= p.MaxRetries
}

// DelayForAttempt returns initial*multiplier^(attempt-1) capped at the max delay,
// optionally perturbed by +/-20%.
func (p Policy) DelayForAttempt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	multiplier := p.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	maxDelay := float64(p.MaxDelay())

	delay := CalculateBackoffDuration(attempt-1, p.InitialDelay(), multiplier, p.MaxDelay())
	if !p.Jitter {
		return delay
	}

	// The floor never lifts a delay above the policy's own max.
	floor := math.Min(float64(MinDelay), maxDelay)
	jittered := float64(delay) * (1 - jitterSpread + randFloat()*2*jitterSpread)
	jittered = math.Max(jittered, floor)
	jittered = math.Min(jittered, maxDelay)
	return time.Duration(jittered)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
