package agents

import (
	"errors"
	"fmt"

	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
)

// ErrProviderUnavailable is returned when no model provider is configured.
var ErrProviderUnavailable = errors.New("model provider unavailable")

// Status is the outcome label of an invocation.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusError       Status = "error"
	StatusUnavailable Status = "unavailable"
)

// InvocationError is returned when the model call for a stage fails.
type InvocationError struct {
	Stage config.Stage
	Cause error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("agent %s: %v", e.Stage, e.Cause)
}

func (e *InvocationError) Unwrap() error { return e.Cause }

// Message is the user-facing text: the stage and a short cause.
func (e *InvocationError) Message() string {
	if errors.Is(e.Cause, ErrProviderUnavailable) {
		return fmt.Sprintf("Modelo indisponível: não foi possível acionar o agente %s. "+
			"Configure a credencial do provedor para habilitar as respostas.", e.Stage)
	}
	return fmt.Sprintf("Não consegui consultar o agente %s agora. Detalhe: %s", e.Stage, truncate(e.Cause.Error(), 200))
}

// IsUnavailable reports whether err means no provider was configured.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
