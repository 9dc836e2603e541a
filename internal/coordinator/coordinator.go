// Package coordinator is the entry point for inbound chat requests: it
// builds context, obtains a model response through the provider chain,
// interprets it, and either dispatches actions or replies directly.
package coordinator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"donna/internal/action"
	"donna/internal/automation"
	"donna/internal/interpret"
	"donna/internal/llm"
	"donna/internal/model"
	"donna/pkg/logger"
)

type completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error)
}

type dispatcher interface {
	DispatchAll(ctx context.Context, dc action.DispatchContext, actions []model.Action) []model.ActionOutcome
}

type automationCreator interface {
	CreateFromInstruction(ctx context.Context, ownerID int, instruction string) (*model.AutomationRule, error)
}

type instructionMatcher interface {
	Canonicalize(instruction string) (automation.Canonical, error)
}

type contextLookup interface {
	RelevantContext(ctx context.Context, ownerID int, text string) string
}

type history interface {
	Append(ctx context.Context, conversationID, role, content string)
	Recent(ctx context.Context, conversationID string) []llm.Message
}

// Coordinator drives one request end to end. It never returns an error
// to the transport for model or parsing trouble: every path produces a
// user-visible reply.
type Coordinator struct {
	router       completer
	dispatcher   dispatcher
	automations  automationCreator
	matcher      instructionMatcher
	lookup       contextLookup
	history      history
	capabilities action.Capabilities
	logger       *zap.Logger
}

func New(
	router completer,
	dispatcher dispatcher,
	automations automationCreator,
	matcher instructionMatcher,
	lookup contextLookup,
	history history,
	capabilities action.Capabilities,
	log *zap.Logger,
) *Coordinator {
	return &Coordinator{
		router:       router,
		dispatcher:   dispatcher,
		automations:  automations,
		matcher:      matcher,
		lookup:       lookup,
		history:      history,
		capabilities: capabilities,
		logger:       log,
	}
}

var automationPhraseRe = regexp.MustCompile(`(?i)^\s*(when(ever)?|every time|each time|any ?time)\b`)

// Handle processes one chat request and returns the reply text.
func (c *Coordinator) Handle(ctx context.Context, req model.Request) string {
	log := logger.WithTrace(ctx, c.logger)

	// "When X happens..." phrasing is only a rule-creation shortcut when
	// the instruction actually canonicalizes; questions like "When is my
	// next meeting?" go through the model like anything else.
	if automationPhraseRe.MatchString(req.Text) {
		if _, err := c.matcher.Canonicalize(req.Text); err == nil {
			return c.createAutomation(ctx, req, log)
		}
	}

	relevantContext := c.lookup.RelevantContext(ctx, req.UserID, req.Text)
	messages := buildMessages(req, relevantContext, c.history.Recent(ctx, req.ConversationID))

	completion, err := c.router.Complete(ctx, llm.CompletionRequest{
		Messages:    messages,
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		log.Warn("All providers failed, using heuristic fallback", zap.Error(err))
		reply := c.fallback(ctx, req, log)
		c.recordTurn(ctx, req, reply)
		return reply
	}

	reply := c.resolve(ctx, req, interpret.Interpret(completion.Content), log)
	c.recordTurn(ctx, req, reply)
	return reply
}

func (c *Coordinator) resolve(ctx context.Context, req model.Request, intent model.ParsedIntent, log *zap.Logger) string {
	switch intent.Kind {
	case model.IntentReply:
		return intent.Reply

	case model.IntentActions:
		dc := action.DispatchContext{OwnerID: req.UserID, Capabilities: c.capabilities}
		outcomes := c.dispatcher.DispatchAll(ctx, dc, intent.Actions)
		log.Info("Action set dispatched",
			zap.Int("actions", len(intent.Actions)),
			zap.Int("outcomes", len(outcomes)),
		)
		return action.Summarize(outcomes)

	default:
		return "I didn't quite catch that. Could you rephrase your request?"
	}
}

func (c *Coordinator) createAutomation(ctx context.Context, req model.Request, log *zap.Logger) string {
	var reply string
	rule, err := c.automations.CreateFromInstruction(ctx, req.UserID, req.Text)
	switch {
	case err != nil:
		log.Error("Failed to store automation", zap.Error(err))
		reply = "Something went wrong saving that automation. Please try again."
	case !rule.Active:
		reply = fmt.Sprintf("I saved that automation, but I couldn't work out exactly what it should do (%s). It's stored inactive for now, so try rephrasing it.", rule.Note)
	default:
		reply = fmt.Sprintf("Done. Whenever that happens I'll take care of it. (Rule: %s)", describeRule(rule))
	}

	c.recordTurn(ctx, req, reply)
	return reply
}

func describeRule(rule *model.AutomationRule) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("on %s", rule.TriggerType))
	if rule.Params.PersonName != "" {
		parts = append(parts, fmt.Sprintf("from %q", rule.Params.PersonName))
	}
	parts = append(parts, fmt.Sprintf("do %s", rule.ActionType))
	return strings.Join(parts, ", ")
}

func (c *Coordinator) recordTurn(ctx context.Context, req model.Request, reply string) {
	c.history.Append(ctx, req.ConversationID, "user", req.Text)
	c.history.Append(ctx, req.ConversationID, "assistant", reply)
}
