// Package session holds per-conversation state.
//
// A Session is passed explicitly into every turn; there is no process-wide
// state. The transcript is append-only, and Artefacts keeps at most one
// record per stage (a later turn overwrites).
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/decoder"
	"github.com/jeeves-cluster-organization/synapse/coreengine/llm"
)

// Message is one transcript entry.
type Message struct {
	Role      string       `json:"role"` // "user" or "assistant"
	Content   string       `json:"content"`
	Stage     config.Stage `json:"stage,omitempty"` // Stage active when the entry was appended
	CreatedAt time.Time    `json:"created_at"`
}

// Session is the state of one user conversation.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`

	Messages          []Message                       `json:"messages"`
	CurrentStage      config.Stage                    `json:"current_stage,omitempty"`
	Artefacts         map[config.Stage]decoder.Record `json:"-"`
	PendingSuggestion config.Stage                    `json:"pending_suggestion,omitempty"`

	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a session seeded with exactly one assistant welcome message.
func New(userID, welcome string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Messages:  make([]Message, 0, 16),
		Artefacts: make(map[config.Stage]decoder.Record),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if welcome == "" {
		welcome = config.DefaultWelcomeMessage
	}
	s.Messages = append(s.Messages, Message{Role: llm.RoleAssistant, Content: welcome, CreatedAt: now})
	return s
}

// AppendUser appends a user entry.
func (s *Session) AppendUser(content string) {
	s.append(llm.RoleUser, content)
}

// AppendAssistant appends an assistant entry.
func (s *Session) AppendAssistant(content string) {
	s.append(llm.RoleAssistant, content)
}

func (s *Session) append(role, content string) {
	now := time.Now().UTC()
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Stage: s.CurrentStage, CreatedAt: now})
	s.UpdatedAt = now
}

// Tail returns a copy of the last n transcript entries.
func (s *Session) Tail(n int) []Message {
	if n <= 0 {
		return nil
	}
	start := len(s.Messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(s.Messages)-start)
	copy(out, s.Messages[start:])
	return out
}

// SetStage persists the routed stage.
func (s *Session) SetStage(stage config.Stage) {
	s.CurrentStage = stage
	s.UpdatedAt = time.Now().UTC()
}

// RecordArtefact stores the latest record for stage, replacing any previous one.
func (s *Session) RecordArtefact(stage config.Stage, rec decoder.Record) {
	s.Artefacts[stage] = rec
	s.UpdatedAt = time.Now().UTC()
}

// Artefact returns the recorded artefact for stage.
func (s *Session) Artefact(stage config.Stage) (decoder.Record, bool) {
	rec, ok := s.Artefacts[stage]
	return rec, ok
}

// HasArtefact reports whether stage is completed.
func (s *Session) HasArtefact(stage config.Stage) bool {
	_, ok := s.Artefacts[stage]
	return ok
}

// ClearSuggestion drops the pending suggestion and returns it.
func (s *Session) ClearSuggestion() config.Stage {
	prev := s.PendingSuggestion
	s.PendingSuggestion = ""
	return prev
}

// View is the read-only slice of session state the router needs.
type View struct {
	CurrentStage      config.Stage
	PendingSuggestion config.Stage
}

// View snapshots routing-relevant fields.
func (s *Session) View() View {
	return View{CurrentStage: s.CurrentStage, PendingSuggestion: s.PendingSuggestion}
}
