package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"parley/pkg/domain"
	"parley/pkg/platform/audit"
)

// Store persists audit events in the audit_events table.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const eventColumns = `occurred_at, user_id, action, subject, decision, reason, request_id, actor_id`

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.Timestamp, event.UserID.String(), string(event.Action),
		event.Subject, event.Decision, event.Reason, event.RequestID, event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID domain.UserID) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM audit_events
		WHERE user_id = $1
		ORDER BY occurred_at`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM audit_events
		ORDER BY occurred_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]audit.Event, error) {
	var out []audit.Event
	for rows.Next() {
		var (
			e      audit.Event
			userID string
			action string
		)
		if err := rows.Scan(&e.Timestamp, &userID, &action,
			&e.Subject, &e.Decision, &e.Reason, &e.RequestID, &e.ActorID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		parsed, err := domain.ParseUserID(userID)
		if err != nil {
			return nil, fmt.Errorf("stored user id: %w", err)
		}
		e.UserID = parsed
		e.Action = audit.Action(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
