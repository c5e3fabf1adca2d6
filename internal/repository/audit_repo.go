package repository

import (
	"context"
	"fmt"

	"annonces-api/internal/model"
)

type AuditRepository struct {
	db Querier
}

func NewAuditRepository(db Querier) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, e model.AuditEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_entries (id, action, actor_id, actor_username, actor_role, annonce_id, detail, occurred_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8)`,
		e.ID, e.Action, e.ActorID, e.ActorUsername, e.ActorRole, e.AnnonceID, e.Detail, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, action, COALESCE(actor_id::text, ''), COALESCE(actor_username, ''),
		        COALESCE(actor_role, ''), COALESCE(annonce_id::text, ''), COALESCE(detail, ''), occurred_at
		 FROM audit_entries ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.ActorUsername,
			&e.ActorRole, &e.AnnonceID, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
