package commbus

import (
	"time"
)

// MessageCategory represents message routing categories.
type MessageCategory string

const (
	// MessageCategoryEvent represents fire-and-forget, fan-out to all subscribers.
	MessageCategoryEvent MessageCategory = "event"
	// MessageCategoryQuery represents request-response, single handler.
	MessageCategoryQuery MessageCategory = "query"
)

// =============================================================================
// SESSION LIFECYCLE EVENTS
// =============================================================================

// SessionStarted is emitted when a session is created.
type SessionStarted struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	At        time.Time `json:"at"`
}

// Category implements the Message interface.
func (m *SessionStarted) Category() string { return string(MessageCategoryEvent) }

// SessionEnded is emitted when a session is torn down.
type SessionEnded struct {
	SessionID string `json:"session_id"`
	Turns     int    `json:"turns"`
}

// Category implements the Message interface.
func (m *SessionEnded) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// TURN EVENTS
// =============================================================================

// StageRouted is emitted once per turn with the router decision.
type StageRouted struct {
	SessionID     string `json:"session_id"`
	TurnID        string `json:"turn_id"`
	Stage         string `json:"stage"`
	Reason        string `json:"reason"`
	PreviousStage string `json:"previous_stage,omitempty"`
}

// Category implements the Message interface.
func (m *StageRouted) Category() string { return string(MessageCategoryEvent) }

// AgentInvoked is emitted after the stage agent call returns.
type AgentInvoked struct {
	SessionID  string  `json:"session_id"`
	TurnID     string  `json:"turn_id"`
	Stage      string  `json:"stage"`
	Status     string  `json:"status"` // "success", "error", "unavailable"
	DurationMS int     `json:"duration_ms"`
	Error      *string `json:"error,omitempty"`
}

// Category implements the Message interface.
func (m *AgentInvoked) Category() string { return string(MessageCategoryEvent) }

// ArtefactRecorded is emitted when a decoded record is stored for a stage.
type ArtefactRecorded struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Stage     string `json:"stage"`
	Strategy  string `json:"strategy"` // decoder strategy
	Replaced  bool   `json:"replaced"` // a previous artefact was overwritten
}

// Category implements the Message interface.
func (m *ArtefactRecorded) Category() string { return string(MessageCategoryEvent) }

// TurnCompleted is emitted at the end of every turn.
type TurnCompleted struct {
	SessionID     string `json:"session_id"`
	TurnID        string `json:"turn_id"`
	Stage         string `json:"stage"`
	SuggestedNext string `json:"suggested_next,omitempty"`
	Status        string `json:"status"` // "success", "degraded"
	DurationMS    int    `json:"duration_ms"`
}

// Category implements the Message interface.
func (m *TurnCompleted) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// QUERIES
// =============================================================================

// GetProgress asks for the pipeline progress of a session.
type GetProgress struct {
	SessionID string `json:"session_id"`
}

// Category implements the Message interface.
func (m *GetProgress) Category() string { return string(MessageCategoryQuery) }

// IsQuery implements the Query interface.
func (m *GetProgress) IsQuery() {}

// =============================================================================
// MESSAGE TYPE REGISTRY
// =============================================================================

// TypedMessage is an optional interface for messages that provide their own type name.
type TypedMessage interface {
	Message
	MessageType() string
}

// GetMessageType returns the type name of a message for routing.
func GetMessageType(msg Message) string {
	if typed, ok := msg.(TypedMessage); ok {
		return typed.MessageType()
	}

	switch msg.(type) {
	case *SessionStarted:
		return "SessionStarted"
	case *SessionEnded:
		return "SessionEnded"
	case *StageRouted:
		return "StageRouted"
	case *AgentInvoked:
		return "AgentInvoked"
	case *ArtefactRecorded:
		return "ArtefactRecorded"
	case *TurnCompleted:
		return "TurnCompleted"
	case *GetProgress:
		return "GetProgress"
	default:
		return "Unknown"
	}
}
