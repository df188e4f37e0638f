package worker

import (
	"context"
	"sync"
	"time"

	"chatclone/internal/chat"
	"chatclone/internal/models"
)

type taskResult struct {
	view models.View
	err  error
}

type task struct {
	ctx      context.Context
	name     string
	apply    func(*chat.State) ([]chat.Effect, error)
	resultCh chan taskResult
}

// sessionState is the isolated state of one browser session. chat is mutated only by the
// session's runner goroutine and read by snapshots under mu.
type sessionState struct {
	mu       sync.RWMutex
	chat     *chat.State
	lastUsed time.Time
	pending  int

	taskCh   chan task
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newSessionState(st *chat.State, queueLen int, now time.Time) *sessionState {
	return &sessionState{
		chat:     st,
		lastUsed: now,
		taskCh:   make(chan task, queueLen),
		stopCh:   make(chan struct{}),
	}
}

func (s *sessionState) snapshot() models.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chat.Snapshot()
}

func (s *sessionState) busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chat.Busy()
}

func (s *sessionState) addPending(delta int, now time.Time) {
	s.mu.Lock()
	s.pending += delta
	s.lastUsed = now
	s.mu.Unlock()
}

// idleSince reports whether the session has had no queued or running task since cutoff.
func (s *sessionState) idleSince(cutoff time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending == 0 && !s.chat.Busy() && !s.lastUsed.After(cutoff)
}

func (s *sessionState) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
