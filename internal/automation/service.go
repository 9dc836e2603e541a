package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"donna/internal/model"
	"donna/internal/repository"
)

// Service persists automation rules derived from user instructions.
type Service struct {
	matcher *Matcher
	rules   *repository.RuleRepository
	logger  *zap.Logger
}

func NewService(matcher *Matcher, rules *repository.RuleRepository, logger *zap.Logger) *Service {
	return &Service{matcher: matcher, rules: rules, logger: logger}
}

// CreateFromInstruction canonicalizes and stores an instruction. An
// unrecognized instruction is stored inactive with an explanatory note
// rather than discarded; the returned error covers store failures only.
func (s *Service) CreateFromInstruction(ctx context.Context, ownerID int, instruction string) (*model.AutomationRule, error) {
	rule := &model.AutomationRule{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Instruction: instruction,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	canonical, err := s.matcher.Canonicalize(instruction)
	switch {
	case errors.Is(err, ErrUnrecognizedInstruction):
		rule.Active = false
		rule.Note = "unrecognized automation type: could not determine a trigger and action from this instruction"
		s.logger.Info("Storing unrecognized automation inactive",
			zap.Int("owner_id", ownerID),
			zap.String("rule_id", rule.ID),
		)
	case err != nil:
		return nil, fmt.Errorf("canonicalize instruction: %w", err)
	default:
		rule.Active = true
		rule.TriggerType = canonical.TriggerType
		rule.ActionType = canonical.ActionType
		rule.Params = canonical.Params
	}

	if err := s.rules.Insert(ctx, rule); err != nil {
		return nil, fmt.Errorf("store automation rule: %w", err)
	}
	return rule, nil
}

// SetActive flips a rule's active flag.
func (s *Service) SetActive(ctx context.Context, id string, ownerID int, active bool) error {
	return s.rules.SetActive(ctx, id, ownerID, active)
}

// List returns all of the owner's rules, newest first.
func (s *Service) List(ctx context.Context, ownerID int) ([]model.AutomationRule, error) {
	return s.rules.ListByOwner(ctx, ownerID)
}
