package collector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS qr_chunks (
	session     TEXT        NOT NULL,
	name        TEXT        NOT NULL,
	content     TEXT        NOT NULL,
	received_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session, name)
)`

// PostgresStore keeps chunk texts in the qr_chunks table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Put(ctx context.Context, chunk StoredChunk) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO qr_chunks (session, name, content, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session, name) DO NOTHING`,
		chunk.Session, chunk.Name, chunk.Content, chunk.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert chunk: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT session FROM qr_chunks ORDER BY session`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var session string
		if err := rows.Scan(&session); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (s *PostgresStore) SessionChunks(ctx context.Context, session string) ([]StoredChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session, name, content, received_at
		FROM qr_chunks
		WHERE session = $1
		ORDER BY name`,
		session,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]StoredChunk, 0)
	for rows.Next() {
		var c StoredChunk
		if err := rows.Scan(&c.Session, &c.Name, &c.Content, &c.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM qr_chunks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}

	return count, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM qr_chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
