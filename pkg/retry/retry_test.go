package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastOptions(attempts int) Options {
	return Options{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int

	err := Do(context.Background(), fastOptions(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(attempt int, err error, _ time.Duration) {
		retried = append(retried, attempt)
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsOnFatal(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad payload")

	err := Do(context.Background(), fastOptions(5), func() error {
		calls++
		return NewFatalError(sentinel)
	}, nil)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastOptions(3), func() error {
		calls++
		return errors.New("down")
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}
