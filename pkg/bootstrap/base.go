package bootstrap

import (
	"context"
	"fmt"

	"github.com/xkayo32/pytake-sub002/internal/broker"
	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/logger"
)

type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Publisher broker.Publisher
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config:    cfg,
		Logger:    log,
		Publisher: broker.NopPublisher(),
	}
}

func (b *Base) InitBroker() error {
	publisher, err := broker.NewPublisher(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	b.Publisher = publisher
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	errs = append(errs, b.ShutdownBroker()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
