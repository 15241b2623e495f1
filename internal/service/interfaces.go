// Package service defines the interfaces shared between the stores, tools, and pipelines.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/tachyon/internal/model"
)

// RecordCounter answers the two count queries the location probability tool needs.
type RecordCounter interface {
	// CountUserRecords returns how many expense records belong to uid.
	CountUserRecords(ctx context.Context, uid string) (int64, error)
	// CountUserRecordsAt returns how many of uid's records have a geo field
	// containing location, compared case-insensitively.
	CountUserRecordsAt(ctx context.Context, uid, location string) (int64, error)
}

// RecordStore persists and lists expense records.
type RecordStore interface {
	RecordCounter
	SaveExpenseRecords(ctx context.Context, records []model.ExpenseRecord) error
	GetUserRecords(ctx context.Context, uid string, limit int) ([]model.ExpenseRecord, error)
	DeleteUserRecords(ctx context.Context, uid string) (int64, error)
}

// DocumentReader fetches a single document by collection and id.
// Implementations return common.ErrNotFound when the document does not exist.
type DocumentReader interface {
	GetDocument(ctx context.Context, collection, id string) (*model.Document, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
