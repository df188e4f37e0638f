package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"chatclone/internal/chat"
	"chatclone/internal/models"
	"chatclone/internal/service/ai"
)

const queueLen = 16

var (
	// ErrQueueFull is returned when a session already has queueLen actions waiting.
	ErrQueueFull = errors.New("too many pending actions for this session")
	// ErrSessionClosed is returned when a session was stopped before it handled the action.
	ErrSessionClosed = errors.New("session closed")
)

type Config struct {
	Temperature       float32
	CompletionTimeout time.Duration
	IdleTTL           time.Duration
}

// Manager owns one conversation state per browser session and runs every action of a
// session on that session's goroutine, so completions never overlap within a session.
type Manager struct {
	completer ai.Completer
	cfg       Config
	newState  func() *chat.State
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionState
	quit     chan struct{}
	quitOnce sync.Once
}

func NewManager(completer ai.Completer, cfg Config) *Manager {
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = 2 * time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	m := &Manager{
		completer: completer,
		cfg:       cfg,
		newState:  func() *chat.State { return chat.NewState() },
		now:       time.Now,
		sessions:  make(map[string]*sessionState),
		quit:      make(chan struct{}),
	}
	go m.purgeIdleSessions()
	return m
}

// View returns the current render state of the session, creating it on first sight.
func (m *Manager) View(sessionID string) models.View {
	return m.ensureSession(sessionID).snapshot()
}

func (m *Manager) NewChat(ctx context.Context, sessionID string) (models.View, error) {
	return m.do(ctx, sessionID, "new_chat", func(st *chat.State) ([]chat.Effect, error) {
		_, effects, err := st.NewChat()
		return effects, err
	})
}

func (m *Manager) SelectConversation(ctx context.Context, sessionID, conversationID string) (models.View, error) {
	return m.do(ctx, sessionID, "select_conversation", func(st *chat.State) ([]chat.Effect, error) {
		return st.SelectConversation(conversationID)
	})
}

// SelectExample creates a conversation from prompt and waits for its automatic reply.
func (m *Manager) SelectExample(ctx context.Context, sessionID, prompt string) (models.View, error) {
	return m.do(ctx, sessionID, "select_example", func(st *chat.State) ([]chat.Effect, error) {
		_, effects, err := st.SelectExample(prompt)
		return effects, err
	})
}

// SubmitMessage records text on the active conversation and waits for the reply.
func (m *Manager) SubmitMessage(ctx context.Context, sessionID, text string) (models.View, error) {
	return m.do(ctx, sessionID, "submit_message", func(st *chat.State) ([]chat.Effect, error) {
		return st.SubmitMessage(text)
	})
}

// Purge drops a session and everything it holds.
func (m *Manager) Purge(sessionID string) {
	m.mu.Lock()
	state, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if ok {
		state.stop()
	}
}

// Stop shuts down every session and the idle reaper.
func (m *Manager) Stop() {
	m.quitOnce.Do(func() { close(m.quit) })
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*sessionState)
	m.mu.Unlock()
	for _, state := range sessions {
		state.stop()
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) ensureSession(sessionID string) *sessionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.sessions[sessionID]; ok {
		return state
	}
	state := newSessionState(m.newState(), queueLen, m.now())
	m.sessions[sessionID] = state
	go m.runSession(sessionID, state)
	log.Debug().Str("session", shortID(sessionID)).Msg("session started")
	return state
}

func (m *Manager) do(ctx context.Context, sessionID, name string, apply func(*chat.State) ([]chat.Effect, error)) (models.View, error) {
	state := m.ensureSession(sessionID)
	if state.busy() {
		return state.snapshot(), chat.ErrBusy
	}
	t := task{
		ctx:      context.WithoutCancel(ctx),
		name:     name,
		apply:    apply,
		resultCh: make(chan taskResult, 1),
	}

	state.addPending(1, m.now())
	select {
	case state.taskCh <- t:
	default:
		state.addPending(-1, m.now())
		return state.snapshot(), ErrQueueFull
	}

	select {
	case ret := <-t.resultCh:
		return ret.view, ret.err
	case <-state.stopCh:
		return models.View{}, ErrSessionClosed
	case <-ctx.Done():
		return state.snapshot(), ctx.Err()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
