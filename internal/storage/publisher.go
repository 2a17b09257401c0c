package storage

import (
	"context"
	"errors"

	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

// Publisher 解析结果的下游
type Publisher interface {
	Publish(ctx context.Context, data *protocol.Telemetry) error
	Close() error
}

// Multi 把同一条数据发给所有下游
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, data *protocol.Telemetry) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop 没有配置任何下游时使用
type Nop struct{}

func (Nop) Publish(context.Context, *protocol.Telemetry) error { return nil }

func (Nop) Close() error { return nil }
