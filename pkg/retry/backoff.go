package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ExponentialBackoff builds a cenkalti backoff. maxElapsed of zero means no limit.
func ExponentialBackoff(initialInterval, maxInterval, maxElapsed time.Duration, multiplier float64) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	exp.MaxInterval = maxInterval
	exp.Multiplier = multiplier
	exp.MaxElapsedTime = maxElapsed
	return exp
}

// CalculateBackoffDuration returns initialInterval*multiplier^exponent capped at maxInterval.
func CalculateBackoffDuration(exponent int, initialInterval time.Duration, multiplier float64, maxInterval time.Duration) time.Duration {
	duration := float64(initialInterval) * math.Pow(multiplier, float64(exponent))
	if math.IsInf(duration, 0) || math.IsNaN(duration) || duration > float64(maxInterval) {
		return maxInterval
	}
	return time.Duration(duration)
}
