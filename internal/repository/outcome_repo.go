package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OutcomeRepository is the append-only execution log for automation
// rules. Outcomes are logged, never surfaced to chat.
type OutcomeRepository struct {
	db *pgxpool.Pool
}

func NewOutcomeRepository(db *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

func (r *OutcomeRepository) Insert(ctx context.Context, ownerID int, ruleID, eventID, status, message string) error {
	query := `
        INSERT INTO automation_outcomes (owner_id, rule_id, event_id, status, message, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
    `
	_, err := r.db.Exec(ctx, query, ownerID, ruleID, eventID, status, message)
	return err
}
