package chat

import (
	"strings"

	"github.com/pkg/errors"

	"chatclone/internal/models"
)

// Effect is work a transition asks its owner to perform outside the state.
type Effect interface {
	effect()
}

// CompleteEffect asks for one assistant reply to the given history. The owner reports
// the outcome back through CompletionSucceeded or CompletionFailed.
type CompleteEffect struct {
	ConversationID string
	Messages       []models.Message
	AutoReply      bool
}

func (CompleteEffect) effect() {}

// NewChat creates an empty conversation and makes it active.
func (s *State) NewChat() (string, []Effect, error) {
	if s.Busy() {
		return "", nil, ErrBusy
	}
	id, err := s.create(nil)
	if err != nil {
		return "", nil, err
	}
	s.autoReply = autoReply{}
	s.lastErr = ""
	return id, nil, nil
}

// SelectConversation switches the active conversation. Moving away from a conversation
// that still awaits its automatic reply cancels that reply.
func (s *State) SelectConversation(id string) ([]Effect, error) {
	if s.Busy() {
		return nil, ErrBusy
	}
	if err := s.Select(id); err != nil {
		return nil, err
	}
	if s.autoReply.pending() && s.autoReply.conversationID != id {
		s.autoReply = autoReply{}
	}
	s.lastErr = ""
	return nil, nil
}

// SelectExample starts a conversation pre-filled with prompt and asks for its reply
// right away.
func (s *State) SelectExample(prompt string) (string, []Effect, error) {
	if s.Busy() {
		return "", nil, ErrBusy
	}
	if strings.TrimSpace(prompt) == "" {
		return "", nil, ErrEmptyMessage
	}
	msg := models.UserMessage(prompt)
	id, err := s.create(&msg)
	if err != nil {
		return "", nil, err
	}
	s.autoReply = autoReply{conversationID: id}
	s.lastErr = ""
	return id, s.Resume(), nil
}

// SubmitMessage records user input on the active conversation, titling it from the
// first message, and asks for a reply. Without an active conversation one is created.
func (s *State) SubmitMessage(text string) ([]Effect, error) {
	if s.Busy() {
		return nil, ErrBusy
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if s.activeID == "" {
		if _, err := s.create(nil); err != nil {
			return nil, err
		}
	}
	id := s.activeID
	if err := s.store.Append(id, models.UserMessage(text)); err != nil {
		return nil, err
	}
	if err := s.store.RetitleIfPlaceholder(id, text); err != nil {
		return nil, err
	}
	// the submitted turn's reply answers the example prompt as well
	if s.autoReply.conversationID == id {
		s.autoReply.fired = true
	}
	s.lastErr = ""
	effect, err := s.begin(id, false)
	if err != nil {
		return nil, err
	}
	return []Effect{effect}, nil
}

// Resume re-derives pending work. It yields the automatic reply for an example
// conversation at most once per creation.
func (s *State) Resume() []Effect {
	if !s.autoReply.pending() || s.autoReply.fired || s.Busy() {
		return nil
	}
	conv, err := s.store.Get(s.autoReply.conversationID)
	if err != nil {
		s.autoReply = autoReply{}
		return nil
	}
	if last, ok := conv.last(); !ok || last.Role != models.RoleUser {
		s.autoReply = autoReply{}
		return nil
	}
	s.autoReply.fired = true
	effect, err := s.begin(conv.ID, true)
	if err != nil {
		return nil
	}
	return []Effect{effect}
}

func (s *State) begin(id string, auto bool) (CompleteEffect, error) {
	conv, err := s.store.Get(id)
	if err != nil {
		return CompleteEffect{}, err
	}
	s.inFlight = id
	return CompleteEffect{
		ConversationID: id,
		Messages:       Payload(conv.messages),
		AutoReply:      auto,
	}, nil
}

// CompletionSucceeded appends the assistant reply for the in-flight request.
func (s *State) CompletionSucceeded(id, content string) error {
	if s.inFlight != id {
		return errors.Errorf("no completion in flight for conversation %s", id)
	}
	s.inFlight = ""
	if s.autoReply.conversationID == id {
		s.autoReply = autoReply{}
	}
	if err := s.store.Append(id, models.AssistantMessage(content)); err != nil {
		return err
	}
	s.lastErr = ""
	return nil
}

// CompletionFailed ends the in-flight request without touching the history: the user
// message stays, no assistant message is added. The automatic reply is not retried.
func (s *State) CompletionFailed(id string, cause error) error {
	if s.inFlight != id {
		return errors.Errorf("no completion in flight for conversation %s", id)
	}
	s.inFlight = ""
	if s.autoReply.conversationID == id {
		s.autoReply = autoReply{}
	}
	if cause != nil {
		s.lastErr = cause.Error()
	} else {
		s.lastErr = "completion failed"
	}
	return nil
}

// Payload copies history into the request shape, role and content only.
func Payload(history []models.Message) []models.Message {
	out := make([]models.Message, 0, len(history))
	for _, m := range history {
		out = append(out, models.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
