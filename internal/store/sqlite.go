package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailterm/internal/model"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database lives per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
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

// messageRow mirrors the messages table for sqlx scanning.
type messageRow struct {
	ID        string    `db:"id"`
	AccountID string    `db:"account_id"`
	Mailbox   string    `db:"mailbox"`
	UID       uint32    `db:"uid"`
	MessageID string    `db:"message_id"`
	Subject   string    `db:"subject"`
	FromName  string    `db:"from_name"`
	FromAddr  string    `db:"from_addr"`
	ToAddrs   string    `db:"to_addrs"`
	Date      time.Time `db:"date"`
	Seen      bool      `db:"seen"`
	Flagged   bool      `db:"flagged"`
	Answered  bool      `db:"answered"`
	FetchedAt time.Time `db:"fetched_at"`
}

func (r messageRow) toModel() (model.Message, error) {
	m := model.Message{
		ID:        r.ID,
		AccountID: r.AccountID,
		Mailbox:   r.Mailbox,
		UID:       r.UID,
		MessageID: r.MessageID,
		Subject:   r.Subject,
		FromName:  r.FromName,
		FromAddr:  r.FromAddr,
		Date:      r.Date,
		Seen:      r.Seen,
		Flagged:   r.Flagged,
		Answered:  r.Answered,
		FetchedAt: r.FetchedAt,
	}
	if r.ToAddrs != "" {
		if err := json.Unmarshal([]byte(r.ToAddrs), &m.To); err != nil {
			return model.Message{}, fmt.Errorf("unmarshaling to_addrs for %s: %w", r.ID, err)
		}
	}
	return m, nil
}

// UpsertMessages inserts or replaces a batch of messages. The locally set
// answered flag survives a refresh from the server.
func (s *SQLiteStore) UpsertMessages(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO messages (
			id, account_id, mailbox, uid, message_id,
			subject, from_name, from_addr, to_addrs,
			date, seen, flagged, answered, fetched_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?
		)
		ON CONFLICT(id) DO UPDATE SET
			message_id = excluded.message_id,
			subject    = excluded.subject,
			from_name  = excluded.from_name,
			from_addr  = excluded.from_addr,
			to_addrs   = excluded.to_addrs,
			date       = excluded.date,
			seen       = excluded.seen,
			flagged    = excluded.flagged,
			answered   = MAX(messages.answered, excluded.answered),
			fetched_at = excluded.fetched_at`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		to := m.To
		if to == nil {
			to = []string{}
		}
		toJSON, err := json.Marshal(to)
		if err != nil {
			return fmt.Errorf("marshaling to_addrs for message %s: %w", m.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			m.ID, m.AccountID, m.Mailbox, m.UID, m.MessageID,
			m.Subject, m.FromName, m.FromAddr, string(toJSON),
			m.Date.UTC(), boolToInt(m.Seen), boolToInt(m.Flagged), boolToInt(m.Answered),
			m.FetchedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upserting message %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// GetMessages retrieves messages matching the filter, newest first.
func (s *SQLiteStore) GetMessages(
	ctx context.Context,
	opts MessageFilter,
) ([]model.Message, error) {
	var conditions []string
	var args []interface{}

	if opts.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *opts.AccountID)
	}
	if opts.Mailbox != nil {
		conditions = append(conditions, "mailbox = ?")
		args = append(args, *opts.Mailbox)
	}
	if opts.UnreadOnly {
		conditions = append(conditions, "seen = 0")
	}
	if opts.Query != nil && *opts.Query != "" {
		conditions = append(conditions, "(subject LIKE ? OR from_name LIKE ? OR from_addr LIKE ?)")
		q := "%" + *opts.Query + "%"
		args = append(args, q, q, q)
	}

	query := "SELECT * FROM messages"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC, uid DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	}

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}

	msgs := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}

	return msgs, nil
}

// GetMessageByID retrieves a single message by its ID.
func (s *SQLiteStore) GetMessageByID(
	ctx context.Context,
	id string,
) (*model.Message, error) {
	var r messageRow
	err := s.db.GetContext(ctx, &r, "SELECT * FROM messages WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}

	m, err := r.toModel()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetSeen updates the seen flag of a message.
func (s *SQLiteStore) SetSeen(ctx context.Context, id string, seen bool) error {
	return s.updateFlag(ctx, id, "seen", seen)
}

// SetFlagged updates the flagged (starred) state of a message.
func (s *SQLiteStore) SetFlagged(ctx context.Context, id string, flagged bool) error {
	return s.updateFlag(ctx, id, "flagged", flagged)
}

// SetAnswered marks a message as replied to.
func (s *SQLiteStore) SetAnswered(ctx context.Context, id string) error {
	return s.updateFlag(ctx, id, "answered", true)
}

// updateFlag sets one of the boolean columns. column is never user input.
func (s *SQLiteStore) updateFlag(ctx context.Context, id, column string, value bool) error {
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE messages SET %s = ? WHERE id = ?", column),
		boolToInt(value), id,
	)
	if err != nil {
		return fmt.Errorf("updating %s on message %s: %w", column, id, err)
	}
	return requireAffected(result, "message", id)
}

// DeleteMessage removes a message from the local cache, typically after
// it was archived on the server.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting message %s: %w", id, err)
	}
	return requireAffected(result, "message", id)
}

// CountUnread returns the number of unseen messages for an account.
func (s *SQLiteStore) CountUnread(ctx context.Context, accountID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM messages WHERE account_id = ? AND seen = 0", accountID)
	if err != nil {
		return 0, fmt.Errorf("counting unread for %s: %w", accountID, err)
	}
	return n, nil
}

func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
