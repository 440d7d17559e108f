package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// OutboxRepository is the slice of outbox persistence the workers need.
type OutboxRepository interface {
	// ClaimPending locks up to limit pending events and hands them to fn
	// inside one transaction. Status updates made through the OutboxTx
	// commit together when fn returns nil.
	ClaimPending(ctx context.Context, limit int, fn func(tx OutboxTx, events []*model.OutboxEvent) error) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// OutboxTx updates event status within a claim.
type OutboxTx interface {
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxRetries int) error
}
