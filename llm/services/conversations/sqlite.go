package conversations

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps conversations in a SQLite database. The default DSN is a
// shared in-memory database that is lost when the process ends; pass a file
// path for persistence.
type SQLiteStore struct {
	dsn string
	db  *sql.DB
}

// NewSQLiteStore opens the database and creates the schema
func NewSQLiteStore(ctx context.Context, dsn string) (_ *SQLiteStore, err error) {
	s := &SQLiteStore{dsn: cmp.Or(dsn, "file::memory:?cache=shared")}

	s.db, err = sql.Open("sqlite3", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite3 database: %w", err)
	}
	defer func() {
		if err != nil {
			if e := s.db.Close(); e != nil {
				err = errors.Join(err, e)
			}
		}
	}()

	if _, err = s.db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if err = s.initDB(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initDB(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("error creating conversations table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS conversation_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("error creating messages table: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages (conversation_id, seq)`)
	if err != nil {
		return fmt.Errorf("error creating index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, conv *Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)`,
		conv.ID, conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("error inserting conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (_ *Conversation, err error) {
	var created, updated int64
	err = s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying conversation: %w", err)
	}

	conv := &Conversation{
		ID:        id,
		Messages:  []*Message{},
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, metadata, created_at FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer func() {
		if e := rows.Close(); e != nil {
			err = errors.Join(err, fmt.Errorf("error closing sql.Rows: %w", e))
		}
	}()

	for rows.Next() {
		var (
			msg      Message
			metadata sql.NullString
			ts       int64
		)
		if err = rows.Scan(&msg.ID, &msg.Role, &msg.Content, &metadata, &ts); err != nil {
			return nil, fmt.Errorf("sql rows scan error: %w", err)
		}
		msg.Timestamp = time.Unix(0, ts).UTC()
		if metadata.Valid && metadata.String != "" {
			// corrupted metadata is dropped, the message is kept
			_ = json.Unmarshal([]byte(metadata.String), &msg.Metadata)
		}
		conv.Messages = append(conv.Messages, &msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("sql rows scan error: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) Append(ctx context.Context, id string, msg *Message, window int) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, msg.Timestamp.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("error updating conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}

	var metadata any
	if len(msg.Metadata) > 0 {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("error JSON marshaling metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversation_messages (conversation_id, id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, msg.ID, msg.Role, msg.Content, metadata, msg.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("error inserting message: %w", err)
	}

	if window > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM conversation_messages
			WHERE conversation_id = ? AND seq NOT IN (
				SELECT seq FROM conversation_messages
				WHERE conversation_id = ?
				ORDER BY seq DESC
				LIMIT ?
			)
		`, id, id, window)
		if err != nil {
			return fmt.Errorf("error trimming messages: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("error deleting messages: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) (_ []Summary, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.created_at, c.updated_at, COUNT(m.seq)
		FROM conversations c
		LEFT JOIN conversation_messages m ON m.conversation_id = c.id
		GROUP BY c.id, c.created_at, c.updated_at
	`)
	if err != nil {
		return nil, fmt.Errorf("error listing conversations: %w", err)
	}
	defer func() {
		if e := rows.Close(); e != nil {
			err = errors.Join(err, fmt.Errorf("error closing sql.Rows: %w", e))
		}
	}()

	var out []Summary
	for rows.Next() {
		var (
			sum              Summary
			created, updated int64
		)
		if err = rows.Scan(&sum.ID, &created, &updated, &sum.Messages); err != nil {
			return nil, fmt.Errorf("sql rows scan error: %w", err)
		}
		sum.CreatedAt = time.Unix(0, created).UTC()
		sum.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, sum)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("sql rows scan error: %w", err)
	}
	sortSummaries(out)
	return out, nil
}

// Close the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
