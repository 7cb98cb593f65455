package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"parley/pkg/domain"
	"parley/pkg/platform/sentinel"
)

// PostgresStore persists user records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, id domain.UserID) (*UserRecord, error) {
	return s.getBy(ctx, `SELECT id, handle, display_name, social_links, created_at, updated_at
        FROM users WHERE id=$1`, id.String())
}

func (s *PostgresStore) GetByHandle(ctx context.Context, handle string) (*UserRecord, error) {
	return s.getBy(ctx, `SELECT id, handle, display_name, social_links, created_at, updated_at
        FROM users WHERE handle=$1`, handle)
}

func (s *PostgresStore) getBy(ctx context.Context, query string, arg any) (*UserRecord, error) {
	var (
		record UserRecord
		rawID  string
		links  []byte
	)
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&rawID, &record.Handle, &record.DisplayName, &links, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	id, err := domain.ParseUserID(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored user id: %w", err)
	}
	record.ID = id
	if len(links) > 0 {
		if err := json.Unmarshal(links, &record.SocialLinks); err != nil {
			return nil, fmt.Errorf("decode social links: %w", err)
		}
	}
	return &record, nil
}

func (s *PostgresStore) Create(ctx context.Context, record *UserRecord) error {
	links := []byte("{}")
	if len(record.SocialLinks) > 0 {
		var err error
		links, err = json.Marshal(record.SocialLinks)
		if err != nil {
			return fmt.Errorf("encode social links: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO users (id, handle, display_name, social_links, created_at, updated_at)
        VALUES ($1, $2, $3, $4, now(), now())
    `, record.ID.String(), record.Handle, record.DisplayName, links)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("user or handle exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Put merges the patch into the record. Social links use a jsonb merge so
// concurrent moderators patching different platforms do not clobber each
// other.
func (s *PostgresStore) Put(ctx context.Context, id domain.UserID, patch Patch) error {
	links := []byte("{}")
	if len(patch.SocialLinks) > 0 {
		var err error
		links, err = json.Marshal(patch.SocialLinks)
		if err != nil {
			return fmt.Errorf("encode social links: %w", err)
		}
	}
	tag, err := s.pool.Exec(ctx, `
        UPDATE users
        SET display_name = COALESCE($2, display_name),
            social_links = social_links || $3::jsonb,
            updated_at = now()
        WHERE id = $1
    `, id.String(), patch.DisplayName, links)
	if err != nil {
		return fmt.Errorf("patch user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
