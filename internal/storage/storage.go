package storage

import (
	"context"

	"koalaswap/internal/model"
)

// Journal is a sink for operation records.
type Journal interface {
	PutOperation(ctx context.Context, record model.OperationRecord) error
	Close() error
}

// Nop discards every record.
type Nop struct{}

func (Nop) PutOperation(context.Context, model.OperationRecord) error { return nil }

func (Nop) Close() error { return nil }
