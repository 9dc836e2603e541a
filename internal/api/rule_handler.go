package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"donna/internal/automation"
	"donna/internal/model"
)

type RuleHandler struct {
	rules *automation.Service
}

func NewRuleHandler(rules *automation.Service) *RuleHandler {
	return &RuleHandler{rules: rules}
}

type createRuleRequest struct {
	Instruction string `json:"instruction" binding:"required"`
}

type ruleResponse struct {
	ID          string            `json:"id"`
	Instruction string            `json:"instruction"`
	TriggerType model.TriggerType `json:"trigger_type"`
	ActionType  string            `json:"action_type"`
	Active      bool              `json:"active"`
	Note        string            `json:"note,omitempty"`
}

func toRuleResponse(r *model.AutomationRule) ruleResponse {
	return ruleResponse{
		ID:          r.ID,
		Instruction: r.Instruction,
		TriggerType: r.TriggerType,
		ActionType:  string(r.ActionType),
		Active:      r.Active,
		Note:        r.Note,
	}
}

func (h *RuleHandler) ListRules(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	rules, err := h.rules.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rules"})
		return
	}

	out := make([]ruleResponse, 0, len(rules))
	for i := range rules {
		out = append(out, toRuleResponse(&rules[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

// CreateRule stores a rule from a natural-language instruction. An
// instruction we cannot canonicalize is still stored, inactive, so the
// user can see it and nothing fires from it.
func (h *RuleHandler) CreateRule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	rule, err := h.rules.CreateFromInstruction(c.Request.Context(), userID, req.Instruction)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create rule"})
		return
	}

	c.JSON(http.StatusCreated, toRuleResponse(rule))
}

func (h *RuleHandler) ActivateRule(c *gin.Context) {
	h.setActive(c, true)
}

func (h *RuleHandler) DeactivateRule(c *gin.Context) {
	h.setActive(c, false)
}

func (h *RuleHandler) setActive(c *gin.Context, active bool) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	id := c.Param("id")
	if err := h.rules.SetActive(c.Request.Context(), id, userID, active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "active": active})
}
