package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"donna/internal/model"
)

type RuleRepository struct {
	db *pgxpool.Pool
}

func NewRuleRepository(db *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Insert(ctx context.Context, rule *model.AutomationRule) error {
	params, err := json.Marshal(rule.Params)
	if err != nil {
		return fmt.Errorf("marshal rule params: %w", err)
	}

	query := `
        INSERT INTO automation_rules
            (id, owner_id, instruction, trigger_type, action_type, params, active, note, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
    `
	_, err = r.db.Exec(ctx, query,
		rule.ID, rule.OwnerID, rule.Instruction,
		string(rule.TriggerType), string(rule.ActionType),
		params, rule.Active, rule.Note,
	)
	return err
}

func (r *RuleRepository) FindByID(ctx context.Context, id string, ownerID int) (*model.AutomationRule, error) {
	query := `
        SELECT id, owner_id, instruction, trigger_type, action_type, params, active, note, created_at, updated_at
        FROM automation_rules
        WHERE id = $1 AND owner_id = $2
    `
	return scanRule(r.db.QueryRow(ctx, query, id, ownerID))
}

func (r *RuleRepository) ListByOwner(ctx context.Context, ownerID int) ([]model.AutomationRule, error) {
	query := `
        SELECT id, owner_id, instruction, trigger_type, action_type, params, active, note, created_at, updated_at
        FROM automation_rules
        WHERE owner_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListActive returns the owner's active rules for one trigger type, in
// creation order so execution order is stable.
func (r *RuleRepository) ListActive(ctx context.Context, ownerID int, trigger model.TriggerType) ([]model.AutomationRule, error) {
	query := `
        SELECT id, owner_id, instruction, trigger_type, action_type, params, active, note, created_at, updated_at
        FROM automation_rules
        WHERE owner_id = $1 AND trigger_type = $2 AND active = TRUE
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, ownerID, string(trigger))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// SetActive flips the active flag. Rules are never deleted.
func (r *RuleRepository) SetActive(ctx context.Context, id string, ownerID int, active bool) error {
	query := `
        UPDATE automation_rules
        SET active = $3, updated_at = NOW()
        WHERE id = $1 AND owner_id = $2
    `
	tag, err := r.db.Exec(ctx, query, id, ownerID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.AutomationRule, error) {
	var rule model.AutomationRule
	var trigger, action string
	var params []byte

	err := row.Scan(
		&rule.ID, &rule.OwnerID, &rule.Instruction,
		&trigger, &action, &params,
		&rule.Active, &rule.Note, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.TriggerType = model.TriggerType(trigger)
	rule.ActionType = model.ActionKind(action)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &rule.Params); err != nil {
			return nil, fmt.Errorf("unmarshal rule params: %w", err)
		}
	}
	return &rule, nil
}

func collectRules(rows pgx.Rows) ([]model.AutomationRule, error) {
	var rules []model.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}
