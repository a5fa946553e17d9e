// Package router decides which stage handles a user message.
//
// Resolution order, first match wins:
//   - manual override
//   - keyword rules, in declaration order
//   - confirmation token, which accepts the pending suggestion
//   - fallback: model classification or pipeline advance
//
// Route never fails. Every ambiguity resolves to a configured stage.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/llm"
	"github.com/jeeves-cluster-organization/synapse/coreengine/logging"
	"github.com/jeeves-cluster-organization/synapse/coreengine/observability"
	"github.com/jeeves-cluster-organization/synapse/coreengine/session"
	"go.opentelemetry.io/otel/attribute"
)

// Reason explains how a Decision was reached.
type Reason string

const (
	ReasonOverride     Reason = "override"
	ReasonKeyword      Reason = "keyword"
	ReasonConfirmation Reason = "confirmation"
	ReasonClassified   Reason = "classified"
	ReasonDefault      Reason = "default"
	ReasonAdvance      Reason = "advance"
	ReasonInitial      Reason = "initial"
)

// Decision is the routed stage and why.
type Decision struct {
	Stage  config.Stage
	Reason Reason
}

// Confirmed reports whether the user accepted a proposed stage.
func (d Decision) Confirmed() bool { return d.Reason == ReasonConfirmation }

var tracer = observability.Tracer("router")

// Router resolves user text to a stage.
type Router struct {
	registry   *config.Registry
	cfg        *config.CoreConfig
	classifier llm.Provider // nil: classification unavailable
	logger     logging.Logger
}

// New creates a router. classifier may be nil.
func New(registry *config.Registry, cfg *config.CoreConfig, classifier llm.Provider, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{
		registry:   registry,
		cfg:        cfg,
		classifier: classifier,
		logger:     logger.Bind("component", "router"),
	}
}

// Route picks the stage for text. A non-empty override is returned verbatim.
func (r *Router) Route(ctx context.Context, text string, state session.View, override config.Stage) Decision {
	ctx, span := tracer.Start(ctx, "router.route")
	defer span.End()

	d := r.resolve(ctx, text, state, override)

	span.SetAttributes(
		attribute.String("synapse.stage", string(d.Stage)),
		attribute.String("synapse.route.reason", string(d.Reason)),
	)
	observability.RecordRouteDecision(string(d.Stage), string(d.Reason))
	r.logger.Debug("router_decision", "stage", d.Stage, "reason", d.Reason, "current_stage", state.CurrentStage)
	return d
}

func (r *Router) resolve(ctx context.Context, text string, state session.View, override config.Stage) Decision {
	if override != "" {
		return Decision{Stage: override, Reason: ReasonOverride}
	}

	if stage, ok := r.MatchKeyword(text); ok {
		return Decision{Stage: stage, Reason: ReasonKeyword}
	}

	if r.registry.IsConfirmation(text) {
		return r.confirm(state)
	}

	if r.cfg.FallbackMode == config.FallbackAdvance {
		return r.advance(state.CurrentStage)
	}
	return r.classify(ctx, text)
}

// MatchKeyword evaluates the keyword rules against the case-folded text.
func (r *Router) MatchKeyword(text string) (config.Stage, bool) {
	folded := strings.ToLower(text)
	for _, rule := range r.registry.Rules() {
		if rule.Matches(folded) {
			r.logger.Debug("router_keyword_match", "pattern", rule.Pattern.String(), "stage", rule.Stage)
			return rule.Stage, true
		}
	}
	return "", false
}

// confirm accepts the pending suggestion, else advances.
func (r *Router) confirm(state session.View) Decision {
	if state.PendingSuggestion != "" && r.registry.Contains(state.PendingSuggestion) {
		return Decision{Stage: state.PendingSuggestion, Reason: ReasonConfirmation}
	}
	if next, ok := r.registry.Successor(state.CurrentStage); ok {
		return Decision{Stage: next, Reason: ReasonConfirmation}
	}
	return Decision{Stage: r.initial(), Reason: ReasonConfirmation}
}

func (r *Router) advance(current config.Stage) Decision {
	if next, ok := r.registry.Successor(current); ok {
		return Decision{Stage: next, Reason: ReasonAdvance}
	}
	return Decision{Stage: r.initial(), Reason: ReasonInitial}
}

func (r *Router) initial() config.Stage {
	if r.cfg.InitialStage != "" {
		return r.cfg.InitialStage
	}
	return r.registry.First()
}

// classify asks the model for a single stage label. Any failure or
// unrecognised label yields the default stage.
func (r *Router) classify(ctx context.Context, text string) Decision {
	fallback := Decision{Stage: r.cfg.DefaultStage, Reason: ReasonDefault}
	if r.classifier == nil {
		return fallback
	}

	out, err := r.classifier.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: r.classifierPrompt()},
			{Role: llm.RoleUser, Content: strings.ToLower(text)},
		},
		Temperature: llm.Temperature(r.cfg.ClassifierTemperature),
		MaxTokens:   r.cfg.ClassifierMaxTokens,
	})
	if err != nil {
		r.logger.Warn("router_classify_failed", "error", err.Error(), "default_stage", r.cfg.DefaultStage)
		return fallback
	}

	stage, ok := r.registry.ParseStage(out)
	if !ok {
		r.logger.Debug("router_classify_unrecognised", "label", out, "default_stage", r.cfg.DefaultStage)
		return fallback
	}
	return Decision{Stage: stage, Reason: ReasonClassified}
}

func (r *Router) classifierPrompt() string {
	labels := make([]string, 0, len(r.registry.Stages()))
	for _, s := range r.registry.Stages() {
		labels = append(labels, string(s))
	}
	return fmt.Sprintf("Classifique a intenção do usuário em UM rótulo: %s. Responda apenas o rótulo.",
		strings.Join(labels, ", "))
}
