// Package orchestrator runs one conversation turn end to end:
// route, acknowledge, invoke, decode, record, propose the next stage.
//
// A turn never fails. Invocation and decode failures surface as warning
// records inside the normal reply shape, and the session still advances.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jeeves-cluster-organization/synapse/commbus"
	"github.com/jeeves-cluster-organization/synapse/coreengine/agents"
	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/decoder"
	"github.com/jeeves-cluster-organization/synapse/coreengine/llm"
	"github.com/jeeves-cluster-organization/synapse/coreengine/logging"
	"github.com/jeeves-cluster-organization/synapse/coreengine/observability"
	"github.com/jeeves-cluster-organization/synapse/coreengine/progression"
	"github.com/jeeves-cluster-organization/synapse/coreengine/router"
	"github.com/jeeves-cluster-organization/synapse/coreengine/session"
	"go.opentelemetry.io/otel/attribute"
)

// Turn status labels.
const (
	StatusSuccess  = "success"
	StatusDegraded = "degraded"
)

var tracer = observability.Tracer("orchestrator")

// Deps wires an Orchestrator.
type Deps struct {
	Registry *config.Registry
	Config   *config.CoreConfig
	Prompts  config.PromptSource // nil: the registry's static prompts
	Provider llm.Provider        // nil: no credential, turns degrade to warnings
	Bus      commbus.CommBus     // nil: events are not published
	Logger   logging.Logger

	// Warnings detected while loading configuration (missing prompt file...).
	Warnings []string
}

// Orchestrator owns the per-turn pipeline. It holds no session state.
type Orchestrator struct {
	registry *config.Registry
	cfg      *config.CoreConfig
	router   *router.Router
	invoker  *agents.Invoker
	tracker  *progression.Tracker
	bus      commbus.CommBus
	logger   logging.Logger
	warnings []string
}

// New creates an orchestrator.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	prompts := deps.Prompts
	if prompts == nil {
		prompts = deps.Registry
	}

	warnings := append([]string(nil), deps.Warnings...)
	if deps.Provider == nil {
		warnings = append(warnings, "Credencial do provedor de modelo não configurada: "+
			"as mensagens serão roteadas, mas nenhum agente será acionado.")
	}

	return &Orchestrator{
		registry: deps.Registry,
		cfg:      deps.Config,
		router:   router.New(deps.Registry, deps.Config, deps.Provider, logger),
		invoker:  agents.NewInvoker(prompts, deps.Provider, deps.Config, logger),
		tracker:  progression.NewTracker(deps.Registry, deps.Config.SuggestionPolicy),
		bus:      deps.Bus,
		logger:   logger.Bind("component", "orchestrator"),
		warnings: warnings,
	}
}

// Warnings returns configuration problems to show before the first turn.
func (o *Orchestrator) Warnings() []string {
	return append([]string(nil), o.warnings...)
}

// Registry returns the stage registry.
func (o *Orchestrator) Registry() *config.Registry { return o.registry }

// TurnResult is everything one turn produced.
type TurnResult struct {
	TurnID          string
	Decision        router.Decision
	Acknowledgement string
	Record          decoder.Record
	Rendered        string
	Suggestion      config.Stage // "" when nothing is proposed
	SuggestionText  string
	Progress        []progression.StageStatus
	Warnings        []string
	Appended        []session.Message // transcript entries added by this turn
	DurationMS      int
}

// Degraded reports whether the reply is a warning or an unstructured fallback.
func (r *TurnResult) Degraded() bool {
	return r.Record.Warning || r.Record.Degraded
}

// HandleTurn processes one user message against sess. The caller guarantees
// that no other turn runs on sess concurrently.
func (o *Orchestrator) HandleTurn(ctx context.Context, sess *session.Session, text string, override config.Stage) *TurnResult {
	ctx, span := tracer.Start(ctx, "orchestrator.turn")
	defer span.End()

	startTime := time.Now()
	startLen := len(sess.Messages)
	res := &TurnResult{TurnID: uuid.New().String()}
	logger := o.logger.Bind("session_id", sess.ID, "turn_id", res.TurnID)

	// 1. transcript
	sess.AppendUser(text)

	// 2-3. route and persist
	previous := sess.CurrentStage
	res.Decision = o.router.Route(ctx, text, sess.View(), override)
	stage := res.Decision.Stage
	sess.ClearSuggestion()
	sess.SetStage(stage)
	span.SetAttributes(
		attribute.String("synapse.session.id", sess.ID),
		attribute.String("synapse.stage", string(stage)),
		attribute.String("synapse.route.reason", string(res.Decision.Reason)),
	)
	o.publish(ctx, &commbus.StageRouted{
		SessionID:     sess.ID,
		TurnID:        res.TurnID,
		Stage:         string(stage),
		Reason:        string(res.Decision.Reason),
		PreviousStage: string(previous),
	})
	logger.Info("turn_routed", "stage", stage, "reason", res.Decision.Reason)

	// 4. acknowledgement
	if o.cfg.Acknowledge {
		res.Acknowledgement = o.invoker.Acknowledge(ctx, stage, text)
		sess.AppendAssistant(res.Acknowledgement)
	}

	// 5. confirmations build on the artefact the suggestion was made from
	agentInput := text
	if res.Decision.Confirmed() && previous != "" && previous != stage {
		if prev, ok := sess.Artefact(previous); ok {
			agentInput = BasePrompt(previous, stage, decoder.Render(prev))
		}
	}

	// 6. invoke
	invokeStart := time.Now()
	raw, err := o.invoker.Invoke(ctx, stage, agentInput, sess.Tail(o.cfg.HistoryWindow))
	invoked := &commbus.AgentInvoked{
		SessionID:  sess.ID,
		TurnID:     res.TurnID,
		Stage:      string(stage),
		Status:     string(agents.StatusSuccess),
		DurationMS: int(time.Since(invokeStart).Milliseconds()),
	}

	if err != nil {
		// 6b. failure: visible warning, nothing stored
		res.Record = decoder.WarningRecord(invocationMessage(stage, err))
		res.Warnings = append(res.Warnings, decoder.Render(res.Record))
		msg := err.Error()
		invoked.Error = &msg
		invoked.Status = string(agents.StatusError)
		if agents.IsUnavailable(err) {
			invoked.Status = string(agents.StatusUnavailable)
		}
		o.publish(ctx, invoked)
	} else {
		o.publish(ctx, invoked)

		// 7. decode and record
		res.Record = decoder.Decode(raw)
		replaced := sess.HasArtefact(stage)
		sess.RecordArtefact(stage, res.Record)
		o.publish(ctx, &commbus.ArtefactRecorded{
			SessionID: sess.ID,
			TurnID:    res.TurnID,
			Stage:     string(stage),
			Strategy:  string(res.Record.Strategy),
			Replaced:  replaced,
		})
		if res.Record.Degraded {
			logger.Warn("turn_decode_degraded", "stage", stage, "response_length", len(raw))
		}
	}
	res.Rendered = decoder.Render(res.Record)
	sess.AppendAssistant(res.Rendered)

	// 8. propose the next stage
	if err == nil {
		if next, ok := o.tracker.Propose(stage, res.Record.ProximosPassos); ok && !sess.HasArtefact(next) {
			res.Suggestion = next
			res.SuggestionText = SuggestionMessage(next, stage)
			sess.PendingSuggestion = next
			sess.AppendAssistant(res.SuggestionText)
		}
	}

	// 9. wrap up
	sess.Turns++
	res.Progress = o.Progress(sess)
	res.Appended = append([]session.Message(nil), sess.Messages[startLen:]...)
	res.DurationMS = int(time.Since(startTime).Milliseconds())

	status := StatusSuccess
	if res.Degraded() {
		status = StatusDegraded
	}
	observability.RecordTurn(string(stage), status, res.DurationMS)
	o.publish(ctx, &commbus.TurnCompleted{
		SessionID:     sess.ID,
		TurnID:        res.TurnID,
		Stage:         string(stage),
		SuggestedNext: string(res.Suggestion),
		Status:        status,
		DurationMS:    res.DurationMS,
	})
	logger.Info("turn_completed", "stage", stage, "status", status, "suggested_next", res.Suggestion, "duration_ms", res.DurationMS)
	return res
}

// Progress classifies every stage of the pipeline for sess.
func (o *Orchestrator) Progress(sess *session.Session) []progression.StageStatus {
	return o.tracker.Progress(sess.HasArtefact)
}

// BasePrompt is the agent input when the user accepts a proposed stage.
func BasePrompt(from, to config.Stage, rendered string) string {
	return fmt.Sprintf("Use o conteúdo do artefato %s abaixo como base para gerar o %s:\n\n%s", from, to, rendered)
}

// SuggestionMessage offers the next stage after a turn on stage.
func SuggestionMessage(next, stage config.Stage) string {
	return fmt.Sprintf("🔄 Deseja que eu gere o artefato **%s** com base neste conteúdo de **%s**?", next, stage)
}

func invocationMessage(stage config.Stage, err error) string {
	var invErr *agents.InvocationError
	if errors.As(err, &invErr) {
		return invErr.Message()
	}
	return fmt.Sprintf("Não consegui consultar o agente %s agora. Detalhe: %v", stage, err)
}

func (o *Orchestrator) publish(ctx context.Context, event commbus.Message) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(ctx, event); err != nil {
		o.logger.Warn("event_publish_failed", "type", commbus.GetMessageType(event), "error", err.Error())
	}
}
