package session

import (
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/synapse/coreengine/logging"
)

// CleanupConfig holds the idle-session sweep parameters.
type CleanupConfig struct {
	// Interval is how often to sweep (default: 5 minutes).
	Interval time.Duration
	// Retention is how long an idle session is kept (default: 1 hour).
	Retention time.Duration
}

// DefaultCleanupConfig returns default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Interval:  5 * time.Minute,
		Retention: 1 * time.Hour,
	}
}

// CleanupStale removes sessions whose last update is older than retention.
// Sessions with a turn in flight are skipped. Returns the number removed.
func (s *Store) CleanupStale(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for id, e := range s.sessions {
		select {
		case e.turn <- struct{}{}:
		default:
			continue // busy
		}
		if e.sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			cleaned++
		}
		<-e.turn
	}
	return cleaned
}

// StartCleanupLoop sweeps the store periodically in the background.
// Returns a stop function that should be called on shutdown.
func StartCleanupLoop(store *Store, cfg CleanupConfig, logger logging.Logger) func() {
	def := DefaultCleanupConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	ticker := time.NewTicker(cfg.Interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				runCleanupCycle(store, cfg, logger)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// runCleanupCycle performs a single sweep with panic recovery.
func runCleanupCycle(store *Store, cfg CleanupConfig, logger logging.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("session_cleanup_panic_recovered", "error", r)
		}
	}()

	cleaned := store.CleanupStale(cfg.Retention)
	logger.Debug("session_cleanup_completed",
		"sessions_cleaned", cleaned,
		"sessions_live", store.Len(),
	)
}
