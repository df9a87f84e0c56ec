package broker

import (
	"context"

	"github.com/xkayo32/pytake-sub002/pkg/models"
)

// Publisher announces webhook events that exhausted their retries.
type Publisher interface {
	PublishDeadLetter(ctx context.Context, notice models.DeadLetterNotice) error
	Close() error
}

type nopPublisher struct{}

// NopPublisher drops every notice. It is used when no broker is configured.
func NopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishDeadLetter(context.Context, models.DeadLetterNotice) error { return nil }
func (nopPublisher) Close() error                                                    { return nil }
