// Package emotes persists per-organization emote sets in PostgreSQL and
// parses the admin replace payload.
package emotes

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/overlaychat/gateway/internal/models"
)

// Repository handles emote persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an emotes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Fetch returns the stored emote list for an organization in display order.
func (r *Repository) Fetch(ctx context.Context, orgID string) ([]models.Emote, error) {
	const q = `SELECT name, url FROM emotes WHERE organization_id = $1 ORDER BY position ASC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("fetch emotes: %w", err)
	}
	defer rows.Close()
	var list []models.Emote
	for rows.Next() {
		var e models.Emote
		if err := rows.Scan(&e.Name, &e.URL); err != nil {
			return nil, fmt.Errorf("scan emote: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Replace swaps the organization's stored emote set for the given list and
// returns what was stored. Runs in one transaction so readers never see a
// partially replaced set.
func (r *Repository) Replace(ctx context.Context, orgID string, list []models.Emote) ([]models.Emote, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin replace emotes: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM emotes WHERE organization_id = $1`, orgID); err != nil {
		return nil, fmt.Errorf("clear emotes: %w", err)
	}
	const ins = `INSERT INTO emotes (organization_id, name, url, position) VALUES ($1, $2, $3, $4)`
	for i, e := range list {
		if _, err := tx.Exec(ctx, ins, orgID, e.Name, e.URL, i); err != nil {
			return nil, fmt.Errorf("insert emote %q: %w", e.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit replace emotes: %w", err)
	}
	return list, nil
}

// Purge removes every stored emote for an organization.
func (r *Repository) Purge(ctx context.Context, orgID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM emotes WHERE organization_id = $1`, orgID); err != nil {
		return fmt.Errorf("purge emotes: %w", err)
	}
	return nil
}
