package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"chatclone/internal/chat"
	"chatclone/internal/models"
	"chatclone/internal/service/ai"
)

type fakeCompleter struct {
	mu      sync.Mutex
	calls   [][]models.Message
	temps   []float32
	fail    error
	release chan struct{}
	started chan struct{}
}

func (f *fakeCompleter) Complete(ctx context.Context, history []models.Message, temperature float32) (models.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, history)
	f.temps = append(f.temps, temperature)
	fail := f.fail
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return models.Message{}, ctx.Err()
		}
	}
	if fail != nil {
		return models.Message{}, fail
	}
	return models.AssistantMessage("reply to " + history[len(history)-1].Content), nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestManager(t *testing.T, completer ai.Completer) *Manager {
	t.Helper()
	m := NewManager(completer, Config{Temperature: 0.7, CompletionTimeout: time.Second, IdleTTL: time.Hour})
	t.Cleanup(m.Stop)
	return m
}

func TestManagerSubmitAppendsReply(t *testing.T) {
	fake := &fakeCompleter{}
	m := newTestManager(t, fake)

	view, err := m.SubmitMessage(context.Background(), "s1", "Hello")
	if err != nil {
		t.Fatalf("SubmitMessage error: %v", err)
	}
	if view.Active == nil || len(view.Active.Messages) != 2 {
		t.Fatalf("expected user and assistant messages, got %#v", view.Active)
	}
	if view.Active.Title != "Hello" {
		t.Fatalf("expected retitled conversation, got %q", view.Active.Title)
	}
	if got := view.Active.Messages[1]; got.Role != models.RoleAssistant || got.Content != "reply to Hello" {
		t.Fatalf("unexpected reply: %#v", got)
	}
	if view.Busy {
		t.Fatalf("view should not be busy after completion")
	}
	if len(fake.temps) != 1 || fake.temps[0] != 0.7 {
		t.Fatalf("temperature not forwarded: %v", fake.temps)
	}
}

func TestManagerSendsFullHistory(t *testing.T) {
	fake := &fakeCompleter{}
	m := newTestManager(t, fake)
	ctx := context.Background()

	if _, err := m.SubmitMessage(ctx, "s1", "first"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := m.SubmitMessage(ctx, "s1", "second"); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	last := fake.calls[len(fake.calls)-1]
	want := []string{"first", "reply to first", "second"}
	if len(last) != len(want) {
		t.Fatalf("expected %d messages in payload, got %d", len(want), len(last))
	}
	for i, content := range want {
		if last[i].Content != content {
			t.Fatalf("payload[%d] = %q, want %q", i, last[i].Content, content)
		}
	}
}

func TestManagerExampleAutoReply(t *testing.T) {
	fake := &fakeCompleter{}
	m := newTestManager(t, fake)

	prompt := "Explain quantum computing in simple terms"
	view, err := m.SelectExample(context.Background(), "s1", prompt)
	if err != nil {
		t.Fatalf("SelectExample error: %v", err)
	}
	if view.Active == nil || len(view.Active.Messages) != 2 {
		t.Fatalf("expected prompt and reply, got %#v", view.Active)
	}
	if view.Active.Title != "Explain quantum computing in s…" {
		t.Fatalf("unexpected title %q", view.Active.Title)
	}
	if view.AutoReplyPending {
		t.Fatalf("auto reply should be consumed")
	}

	// re-rendering never triggers another request
	_ = m.View("s1")
	if _, err := m.SelectConversation(context.Background(), "s1", view.Active.ID); err != nil {
		t.Fatalf("SelectConversation error: %v", err)
	}
	if got := fake.callCount(); got != 1 {
		t.Fatalf("expected exactly one completion, got %d", got)
	}
}

func TestManagerCompletionFailureKeepsUserMessage(t *testing.T) {
	fake := &fakeCompleter{fail: errors.New("upstream 500")}
	m := newTestManager(t, fake)

	view, err := m.SubmitMessage(context.Background(), "s1", "Hello")
	var cerr *ai.CompletionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CompletionError, got %v", err)
	}
	if view.Active == nil || len(view.Active.Messages) != 1 || view.Active.Messages[0].Content != "Hello" {
		t.Fatalf("user message should remain alone: %#v", view.Active)
	}
	if !strings.Contains(view.LastError, "upstream 500") {
		t.Fatalf("expected last error in view, got %q", view.LastError)
	}

	fake.mu.Lock()
	fake.fail = nil
	fake.mu.Unlock()
	view, err = m.SubmitMessage(context.Background(), "s1", "again")
	if err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if len(view.Active.Messages) != 3 || view.LastError != "" {
		t.Fatalf("unexpected view after retry: %#v", view)
	}
}

func TestManagerRejectsWhileBusy(t *testing.T) {
	fake := &fakeCompleter{release: make(chan struct{}), started: make(chan struct{}, 1)}
	m := newTestManager(t, fake)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := m.SubmitMessage(ctx, "s1", "slow")
		done <- err
	}()
	<-fake.started

	view := m.View("s1")
	if !view.Busy {
		t.Fatalf("expected busy view during completion")
	}
	if _, err := m.SubmitMessage(ctx, "s1", "too soon"); !errors.Is(err, chat.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := m.NewChat(ctx, "s1"); !errors.Is(err, chat.ErrBusy) {
		t.Fatalf("expected ErrBusy for new chat, got %v", err)
	}

	close(fake.release)
	if err := <-done; err != nil {
		t.Fatalf("slow submit: %v", err)
	}
	if got := fake.callCount(); got != 1 {
		t.Fatalf("expected one completion, got %d", got)
	}
}

func TestManagerSessionsAreIsolated(t *testing.T) {
	m := newTestManager(t, &fakeCompleter{})
	ctx := context.Background()

	if _, err := m.SubmitMessage(ctx, "alice", "hi from alice"); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if _, err := m.NewChat(ctx, "bob"); err != nil {
		t.Fatalf("new chat bob: %v", err)
	}

	alice := m.View("alice")
	bob := m.View("bob")
	if len(alice.Conversations) != 1 || len(bob.Conversations) != 1 {
		t.Fatalf("unexpected conversation counts: alice=%d bob=%d", len(alice.Conversations), len(bob.Conversations))
	}
	if alice.Conversations[0].ID == bob.Conversations[0].ID {
		t.Fatalf("sessions share conversations")
	}
	if bob.Active == nil || len(bob.Active.Messages) != 0 {
		t.Fatalf("bob should see an empty chat: %#v", bob.Active)
	}
}

func TestManagerSelectUnknownConversation(t *testing.T) {
	m := newTestManager(t, &fakeCompleter{})

	if _, err := m.SelectConversation(context.Background(), "s1", "missing"); !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManagerQueueFull(t *testing.T) {
	m := newTestManager(t, &fakeCompleter{})

	// a session without a runner keeps everything queued
	state := newSessionState(chat.NewState(), queueLen, m.now())
	m.mu.Lock()
	m.sessions["s1"] = state
	m.mu.Unlock()
	for i := 0; i < queueLen; i++ {
		state.taskCh <- task{ctx: context.Background(), name: "filler", resultCh: make(chan taskResult, 1)}
	}

	if _, err := m.NewChat(context.Background(), "s1"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	state.mu.RLock()
	pending := state.pending
	state.mu.RUnlock()
	if pending != 0 {
		t.Fatalf("rejected task left pending=%d", pending)
	}
}

func TestManagerReapIdle(t *testing.T) {
	m := newTestManager(t, &fakeCompleter{})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	if _, err := m.NewChat(context.Background(), "old"); err != nil {
		t.Fatalf("new chat: %v", err)
	}
	now = now.Add(45 * time.Minute)
	_ = m.View("fresh")

	if removed := m.reapIdle(now.Add(20 * time.Minute)); removed != 1 {
		t.Fatalf("expected one reaped session, got %d", removed)
	}
	if m.Len() != 1 {
		t.Fatalf("expected fresh session to survive, have %d", m.Len())
	}
	if view := m.View("old"); len(view.Conversations) != 0 {
		t.Fatalf("reaped session should start empty, got %d conversations", len(view.Conversations))
	}
}

func TestManagerPurgeAndStop(t *testing.T) {
	m := NewManager(&fakeCompleter{}, Config{})
	ctx := context.Background()

	if _, err := m.NewChat(ctx, "s1"); err != nil {
		t.Fatalf("new chat: %v", err)
	}
	m.Purge("s1")
	if m.Len() != 0 {
		t.Fatalf("purge did not remove session")
	}
	// purging twice is a no-op
	m.Purge("s1")

	_ = m.View("s2")
	m.Stop()
	if m.Len() != 0 {
		t.Fatalf("stop did not clear sessions")
	}
	m.Stop()
}
