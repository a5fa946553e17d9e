// Package agents invokes the stage agents. An agent is the system-prompt
// configuration of a stage; invoking it is exactly one model call.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/llm"
	"github.com/jeeves-cluster-organization/synapse/coreengine/logging"
	"github.com/jeeves-cluster-organization/synapse/coreengine/observability"
	"github.com/jeeves-cluster-organization/synapse/coreengine/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = observability.Tracer("agents")

// Invoker issues stage-agent model calls.
type Invoker struct {
	prompts  config.PromptSource
	provider llm.Provider // nil when no credential is configured
	cfg      *config.CoreConfig
	logger   logging.Logger
}

// NewInvoker creates an invoker. provider may be nil, in which case every
// Invoke returns an InvocationError wrapping ErrProviderUnavailable.
func NewInvoker(prompts config.PromptSource, provider llm.Provider, cfg *config.CoreConfig, logger logging.Logger) *Invoker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Invoker{
		prompts:  prompts,
		provider: provider,
		cfg:      cfg,
		logger:   logger.Bind("component", "agents"),
	}
}

// Available reports whether a provider is configured.
func (i *Invoker) Available() bool {
	return i.provider != nil
}

// Invoke runs the stage agent once and returns the raw model text.
// Every failure is returned as *InvocationError.
func (i *Invoker) Invoke(ctx context.Context, stage config.Stage, userText string, tail []session.Message) (output string, err error) {
	ctx, span := tracer.Start(ctx, "agent.invoke")
	defer span.End()
	span.SetAttributes(attribute.String("synapse.stage", string(stage)))

	startTime := time.Now()
	logger := i.logger.Bind("stage", stage)

	defer func() {
		durationMS := int(time.Since(startTime).Milliseconds())
		span.SetAttributes(attribute.Int("duration_ms", durationMS))

		status := StatusSuccess
		if err != nil {
			status = StatusError
			if IsUnavailable(err) {
				status = StatusUnavailable
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("agent_invoke_failed", "error", err.Error(), "duration_ms", durationMS)
		} else {
			span.SetStatus(codes.Ok, "success")
			logger.Info("agent_invoke_completed", "duration_ms", durationMS, "response_length", len(output))
		}
		observability.RecordAgentInvocation(string(stage), string(status), durationMS)
	}()

	if i.provider == nil {
		return "", &InvocationError{Stage: stage, Cause: ErrProviderUnavailable}
	}

	out, callErr := i.provider.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: i.SystemPrompt(stage)},
			{Role: llm.RoleUser, Content: i.UserPrompt(stage, userText, tail)},
		},
		Temperature: llm.Temperature(i.cfg.Temperature),
		MaxTokens:   i.cfg.MaxTokens,
	})
	if callErr != nil {
		return "", &InvocationError{Stage: stage, Cause: callErr}
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", &InvocationError{Stage: stage, Cause: errors.New("empty model response")}
	}

	logger.Debug("agent_llm_response", "response_preview", truncate(out, 200))
	return out, nil
}

// Acknowledge asks the orchestrator persona for a short acknowledgement.
// It never fails: a disabled, absent or failing call yields DefaultAcknowledgement.
func (i *Invoker) Acknowledge(ctx context.Context, stage config.Stage, userText string) string {
	if !i.cfg.Acknowledge || i.provider == nil {
		return DefaultAcknowledgement(stage)
	}

	ctx, span := tracer.Start(ctx, "agent.acknowledge")
	defer span.End()

	out, err := i.provider.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: acknowledgePrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Etapa: %s\nMensagem do usuário: %s", stage, userText)},
		},
		Temperature: llm.Temperature(i.cfg.AckTemperature),
		MaxTokens:   i.cfg.AckMaxTokens,
	})
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		if err != nil {
			span.RecordError(err)
			i.logger.Warn("agent_acknowledge_failed", "stage", stage, "error", err.Error())
		}
		return DefaultAcknowledgement(stage)
	}
	return out
}
