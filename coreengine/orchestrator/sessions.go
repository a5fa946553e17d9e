package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/jeeves-cluster-organization/synapse/commbus"
	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/decoder"
	"github.com/jeeves-cluster-organization/synapse/coreengine/progression"
	"github.com/jeeves-cluster-organization/synapse/coreengine/session"
)

// Service binds an orchestrator to a session store for multi-session surfaces
// (gRPC). Turns on one session are serialized; sessions run in parallel.
type Service struct {
	orch  *Orchestrator
	store *session.Store
}

// NewService creates a Service. The store's welcome message comes from the config.
func NewService(orch *Orchestrator) *Service {
	return &Service{orch: orch, store: session.NewStore(orch.cfg.WelcomeMessage)}
}

// Orchestrator returns the underlying orchestrator.
func (s *Service) Orchestrator() *Orchestrator { return s.orch }

// Store returns the session store.
func (s *Service) Store() *session.Store { return s.store }

// Start creates a session and announces it.
func (s *Service) Start(ctx context.Context, userID string) *session.Session {
	sess := s.store.Create(userID)
	s.orch.publish(ctx, &commbus.SessionStarted{SessionID: sess.ID, UserID: userID, At: time.Now().UTC()})
	return sess
}

// Send runs one turn on the session identified by id.
func (s *Service) Send(ctx context.Context, id, text string, override config.Stage) (*TurnResult, error) {
	var res *TurnResult
	err := s.store.With(ctx, id, func(sess *session.Session) error {
		res = s.orch.HandleTurn(ctx, sess, text, override)
		return nil
	})
	return res, err
}

// Progress returns the pipeline progress of a session.
func (s *Service) Progress(ctx context.Context, id string) ([]progression.StageStatus, error) {
	var out []progression.StageStatus
	err := s.store.With(ctx, id, func(sess *session.Session) error {
		out = s.orch.Progress(sess)
		return nil
	})
	return out, err
}

// Snapshot copies a session under its turn lock.
func (s *Service) Snapshot(ctx context.Context, id string) (session.Session, error) {
	var snap session.Session
	err := s.store.With(ctx, id, func(sess *session.Session) error {
		snap = *sess
		snap.Messages = append([]session.Message(nil), sess.Messages...)
		snap.Artefacts = make(map[config.Stage]decoder.Record, len(sess.Artefacts))
		for k, v := range sess.Artefacts {
			snap.Artefacts[k] = v
		}
		return nil
	})
	return snap, err
}

// End tears a session down.
func (s *Service) End(ctx context.Context, id string) error {
	var turns int
	err := s.store.With(ctx, id, func(sess *session.Session) error {
		turns = sess.Turns
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.orch.publish(ctx, &commbus.SessionEnded{SessionID: id, Turns: turns})
	return nil
}

// RegisterQueries answers GetProgress queries on bus.
func (s *Service) RegisterQueries(bus commbus.CommBus) error {
	return bus.RegisterHandler("GetProgress", func(ctx context.Context, msg commbus.Message) (any, error) {
		q, ok := msg.(*commbus.GetProgress)
		if !ok {
			return nil, fmt.Errorf("unexpected message %T", msg)
		}
		return s.Progress(ctx, q.SessionID)
	})
}
