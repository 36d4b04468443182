package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/emotionwall/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ModerationEntry is one recorded hide/restore action.
type ModerationEntry struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"` // "hide" | "restore"
	HossiiID    string    `json:"hossii_id"`
	ModeratorID string    `json:"moderator_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// RecordModeration appends one audit entry. Called only when a moderator id
// accompanies the action.
func (r *AuditRepository) RecordModeration(ctx context.Context, action, hossiiID, moderatorID string) error {
	defer logger.DeferLogDuration("audit.RecordModeration", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO moderation_audit (action, hossii_id, moderator_id)
		 VALUES ($1, $2, $3)`,
		action, hossiiID, moderatorID,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.RecordModeration: %w", err)
	}
	return nil
}

// ListRecent returns the newest audit entries, most recent first.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]ModerationEntry, error) {
	defer logger.DeferLogDuration("audit.ListRecent", time.Now())()
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, action, hossii_id, moderator_id, created_at
		 FROM moderation_audit
		 ORDER BY created_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListRecent query: %w", err)
	}
	defer rows.Close()

	entries := make([]ModerationEntry, 0, limit)
	for rows.Next() {
		var e ModerationEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.HossiiID, &e.ModeratorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("auditRepo.ListRecent scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auditRepo.ListRecent rows: %w", err)
	}
	return entries, nil
}
