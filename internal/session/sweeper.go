// ABOUTME: One-shot startup sweep clearing every persisted admin session
// ABOUTME: Owned by the composition root and guarded against accidental reruns

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/constructhub/hub/internal/store"
)

// ErrAlreadySwept is returned when Run is called a second time.
var ErrAlreadySwept = errors.New("startup sweep already ran")

// Sweeper clears all persisted admin sessions exactly once, before the
// server starts accepting requests. A restart invalidates every session.
type Sweeper struct {
	store  store.Store
	logger *slog.Logger

	mu   sync.Mutex
	done bool
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(st store.Store) *Sweeper {
	return &Sweeper{
		store:  st,
		logger: slog.Default().With("component", "sweeper"),
	}
}

// Run clears all sessions and returns how many were cleared. A second call
// returns ErrAlreadySwept without touching the store.
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return 0, ErrAlreadySwept
	}

	count, err := s.store.ClearAllSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("startup session sweep: %w", err)
	}
	s.done = true

	s.logger.Info("startup session sweep complete", "cleared", count)
	return count, nil
}

// Reset re-arms the sweeper. Only tests use this.
func (s *Sweeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = false
}
