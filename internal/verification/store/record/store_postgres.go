package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"parley/internal/verification"
	"parley/pkg/domain"
	"parley/pkg/platform/sentinel"
)

// PostgresStore persists verification records in PostgreSQL, one row per
// (user, platform).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `user_id, platform, profile_url, code, status, requested_at, resolved_at`

func (s *PostgresStore) Get(ctx context.Context, userID domain.UserID, platform domain.SocialPlatform) (*verification.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+`
        FROM verification_records WHERE user_id=$1 AND platform=$2`,
		userID.String(), platform.String())
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("verification record: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch verification record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, record *verification.Record) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO verification_records (user_id, platform, profile_url, code, status, requested_at, resolved_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id, platform) DO UPDATE SET
            profile_url = EXCLUDED.profile_url,
            code        = EXCLUDED.code,
            status      = EXCLUDED.status,
            requested_at = EXCLUDED.requested_at,
            resolved_at = EXCLUDED.resolved_at
    `, record.UserID.String(), record.Platform.String(), record.ProfileURL,
		record.Code, string(record.Status), record.RequestedAt, record.ResolvedAt)
	if err != nil {
		return fmt.Errorf("upsert verification record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID domain.UserID) ([]*verification.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+recordColumns+`
        FROM verification_records WHERE user_id=$1 ORDER BY platform`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list verification records: %w", err)
	}
	defer rows.Close()

	var out []*verification.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification records: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*verification.Record, error) {
	var (
		record      verification.Record
		rawUser     string
		rawPlatform string
		rawStatus   string
	)
	if err := row.Scan(&rawUser, &rawPlatform, &record.ProfileURL, &record.Code,
		&rawStatus, &record.RequestedAt, &record.ResolvedAt); err != nil {
		return nil, err
	}
	userID, err := domain.ParseUserID(rawUser)
	if err != nil {
		return nil, fmt.Errorf("stored user id: %w", err)
	}
	record.UserID = userID
	record.Platform = domain.SocialPlatform(rawPlatform)
	record.Status = verification.Status(rawStatus)
	return &record, nil
}
