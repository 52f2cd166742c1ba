package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Divas-Gupta30/hmo-assistant/internal/conversation"
)

// SQLStore keeps sessions in a relational table. It serves both the Postgres
// (lib/pq) and SQLite (modernc) drivers.
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

// OpenPostgres connects to Postgres and creates the sessions table.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return newSQLStore(ctx, db, true)
}

// OpenSQLite opens (or creates) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// single writer
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, false)
}

func newSQLStore(ctx context.Context, db *sql.DB, postgres bool) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting session database: %w", err)
	}
	s := &SQLStore{db: db, postgres: postgres}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions table: %w", err)
	}
	return s, nil
}

func (s *SQLStore) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(64) PRIMARY KEY,
		phase VARCHAR(20) NOT NULL,
		state TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// rebind turns ? placeholders into $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Load(ctx context.Context, id string) (*conversation.State, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT state FROM sessions WHERE id = ?"), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return conversation.Unmarshal([]byte(data))
}

func (s *SQLStore) Save(ctx context.Context, st *conversation.State) error {
	data, err := conversation.Marshal(st)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO sessions (id, phase, state, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET phase = excluded.phase, state = excluded.state, updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, s.rebind(query), st.ID, string(st.Phase), string(data), st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", st.ID, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM sessions WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
