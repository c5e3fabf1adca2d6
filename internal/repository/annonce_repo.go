package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"annonces-api/internal/model"
)

const annonceColumns = `id, titre, description, image, user_id, status,
	COALESCE(rejection_reason, ''), created_at, updated_at`

type AnnonceRepository struct {
	db Querier
}

func NewAnnonceRepository(db Querier) *AnnonceRepository {
	return &AnnonceRepository{db: db}
}

func (r *AnnonceRepository) Insert(ctx context.Context, a model.Annonce) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO annonces (id, titre, description, image, user_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Titre, a.Description, a.Image, a.UserID, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert annonce: %w", err)
	}
	return nil
}

func (r *AnnonceRepository) FindByID(ctx context.Context, id string) (model.Annonce, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+annonceColumns+` FROM annonces WHERE id = $1`, id)

	a, err := scanAnnonce(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Annonce{}, model.ErrAnnonceNotFound
	}
	if err != nil {
		return model.Annonce{}, fmt.Errorf("find annonce by id: %w", err)
	}
	return a, nil
}

func (r *AnnonceRepository) ListValidated(ctx context.Context) ([]model.Annonce, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+annonceColumns+` FROM annonces
		 WHERE status = $1 ORDER BY created_at DESC`, model.StatusValidated)
	if err != nil {
		return nil, fmt.Errorf("list validated annonces: %w", err)
	}
	defer rows.Close()

	return collectAnnonces(rows)
}

func (r *AnnonceRepository) ListByOwner(ctx context.Context, userID string) ([]model.Annonce, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+annonceColumns+` FROM annonces
		 WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list annonces by owner: %w", err)
	}
	defer rows.Close()

	return collectAnnonces(rows)
}

// ListAll returns every annonce, optionally filtered by status. Admin only.
func (r *AnnonceRepository) ListAll(ctx context.Context, status string) ([]model.Annonce, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if status == "" {
		rows, err = r.db.Query(ctx,
			`SELECT `+annonceColumns+` FROM annonces ORDER BY created_at DESC`)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+annonceColumns+` FROM annonces
			 WHERE status = $1 ORDER BY created_at DESC`, status)
	}
	if err != nil {
		return nil, fmt.Errorf("list annonces: %w", err)
	}
	defer rows.Close()

	return collectAnnonces(rows)
}

// UpdateContent changes titre/description in a single conditional statement
// so the ownership check and the write cannot race. A zero-row result is
// disambiguated into not-found or forbidden with a follow-up probe.
func (r *AnnonceRepository) UpdateContent(ctx context.Context, id string, userID string, titre string, description string) (model.Annonce, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE annonces SET titre = $3, description = $4, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+annonceColumns, id, userID, titre, description)

	a, err := scanAnnonce(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Annonce{}, r.missReason(ctx, id)
	}
	if err != nil {
		return model.Annonce{}, fmt.Errorf("update annonce: %w", err)
	}
	return a, nil
}

// Delete removes the row when the caller owns it or carries the admin role,
// again as one conditional statement.
func (r *AnnonceRepository) Delete(ctx context.Context, id string, userID string, role string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM annonces WHERE id = $1 AND (user_id = $2 OR $3 = 'admin')`,
		id, userID, role)
	if err != nil {
		return fmt.Errorf("delete annonce: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return r.missReason(ctx, id)
	}
	return nil
}

// SetStatus applies a moderation transition. Re-applying the current status
// is a no-op update, not an error.
func (r *AnnonceRepository) SetStatus(ctx context.Context, id string, status string, reason *string) (model.Annonce, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE annonces SET status = $2, rejection_reason = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+annonceColumns, id, status, reason)

	a, err := scanAnnonce(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Annonce{}, model.ErrAnnonceNotFound
	}
	if err != nil {
		return model.Annonce{}, fmt.Errorf("set annonce status: %w", err)
	}
	return a, nil
}

func (r *AnnonceRepository) missReason(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM annonces WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("probe annonce existence: %w", err)
	}

	if exists {
		return model.ErrForbidden
	}
	return model.ErrAnnonceNotFound
}

func scanAnnonce(row pgx.Row) (model.Annonce, error) {
	var a model.Annonce
	err := row.Scan(&a.ID, &a.Titre, &a.Description, &a.Image, &a.UserID,
		&a.Status, &a.RejectionReason, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func collectAnnonces(rows pgx.Rows) ([]model.Annonce, error) {
	annonces := make([]model.Annonce, 0)
	for rows.Next() {
		a, err := scanAnnonce(rows)
		if err != nil {
			return nil, fmt.Errorf("scan annonce: %w", err)
		}
		annonces = append(annonces, a)
	}
	return annonces, rows.Err()
}
