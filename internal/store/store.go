package store

import (
	"context"
	"time"

	"github.com/nhle/exchange-mail/internal/model"
)

// MessageFilter controls filtering and pagination for cached message
// queries.
type MessageFilter struct {
	IsRead     *bool
	SentAfter  *time.Time
	SentBefore *time.Time
	Limit      int
	Offset     int
}

// SyncRun records one fetch of the mailbox into the cache.
type SyncRun struct {
	ID         string    `db:"id"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Fetched    int       `db:"fetched"`
	Error      string    `db:"error"`
}

// Store defines the persistence interface for the local message cache
// and its sync history.
type Store interface {
	UpsertMessages(ctx context.Context, messages []model.Message) error
	GetMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error)
	GetMessageByID(ctx context.Context, id string) (*model.Message, error)
	MarkMessagesRead(ctx context.Context, ids []string) error

	RecordSyncRun(ctx context.Context, run SyncRun) error
	GetSyncRuns(ctx context.Context, limit int) ([]SyncRun, error)

	Close() error
}
