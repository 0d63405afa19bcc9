package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/exchange-mail/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// messageRow is the flat database representation of a cached message.
type messageRow struct {
	ID           string    `db:"id"`
	ChangeKey    string    `db:"change_key"`
	Subject      string    `db:"subject"`
	TextBody     string    `db:"text_body"`
	HTMLBody     string    `db:"html_body"`
	DateTimeSent time.Time `db:"datetime_sent"`
	IsRead       bool      `db:"is_read"`
	FromAddress  string    `db:"from_address"`
	ToAddresses  string    `db:"to_addresses"`
	FetchedAt    time.Time `db:"fetched_at"`
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertMessages inserts or replaces a batch of cached messages.
func (s *SQLiteStore) UpsertMessages(ctx context.Context, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR REPLACE INTO messages (
			id, change_key, subject, text_body, html_body,
			datetime_sent, is_read, from_address, to_addresses, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, msg := range messages {
		to, err := json.Marshal(msg.To)
		if err != nil {
			return fmt.Errorf("encoding recipients for %s: %w", msg.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			msg.ID, msg.ChangeKey, msg.Subject, msg.TextBody, msg.HTMLBody,
			msg.DateTimeSent.UTC(), msg.IsRead, msg.From, string(to), now,
		)
		if err != nil {
			return fmt.Errorf("upserting message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// GetMessages returns cached messages matching the filter, newest first.
func (s *SQLiteStore) GetMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error) {
	var conds []string
	var args []any

	if filter.IsRead != nil {
		conds = append(conds, "is_read = ?")
		args = append(args, *filter.IsRead)
	}
	if filter.SentAfter != nil {
		conds = append(conds, "datetime_sent >= ?")
		args = append(args, filter.SentAfter.UTC())
	}
	if filter.SentBefore != nil {
		conds = append(conds, "datetime_sent <= ?")
		args = append(args, filter.SentBefore.UTC())
	}

	query := "SELECT * FROM messages"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY datetime_sent DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}

	messages := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := rowToMessage(row)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// GetMessageByID returns one cached message, or nil when absent.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id string) (*model.Message, error) {
	var row messageRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM messages WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying message %s: %w", id, err)
	}

	msg, err := rowToMessage(row)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkMessagesRead flips is_read on the cached copies of the given ids.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In("UPDATE messages SET is_read = 1 WHERE id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("building mark-read query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("marking messages read: %w", err)
	}
	return nil
}

// RecordSyncRun stores one sync-run record, assigning an id if empty.
func (s *SQLiteStore) RecordSyncRun(ctx context.Context, run SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	const query = `
		INSERT INTO sync_runs (id, started_at, finished_at, fetched, error)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Fetched, run.Error,
	)
	if err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}
	return nil
}

// GetSyncRuns returns the most recent sync runs, newest first.
func (s *SQLiteStore) GetSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []SyncRun
	err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM sync_runs ORDER BY started_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	return runs, nil
}

// rowToMessage converts a database row back into the normalized model.
// The mirrored Author/ToRecipients fields are rebuilt from the flat
// address columns.
func rowToMessage(row messageRow) (model.Message, error) {
	msg := model.Message{
		ID:           row.ID,
		ChangeKey:    row.ChangeKey,
		Subject:      row.Subject,
		TextBody:     row.TextBody,
		HTMLBody:     row.HTMLBody,
		DateTimeSent: row.DateTimeSent,
		IsRead:       row.IsRead,
		From:         row.FromAddress,
	}

	if row.FromAddress != "" {
		msg.Author = &model.Mailbox{EmailAddress: row.FromAddress}
	}

	if err := json.Unmarshal([]byte(row.ToAddresses), &msg.To); err != nil {
		return model.Message{}, fmt.Errorf("decoding recipients for %s: %w", row.ID, err)
	}
	for _, addr := range msg.To {
		msg.ToRecipients = append(msg.ToRecipients, model.Mailbox{EmailAddress: addr})
	}

	return msg, nil
}
