package chat

import (
	"github.com/pkg/errors"

	"chatclone/internal/models"
)

// autoReply remembers a conversation created from an example prompt whose first
// assistant reply has not been produced yet.
type autoReply struct {
	conversationID string
	fired          bool
}

func (a autoReply) pending() bool {
	return a.conversationID != ""
}

// State is the conversation state of one browser session. It is not safe for
// concurrent use; the owner serialises access.
type State struct {
	store     *Store
	activeID  string
	autoReply autoReply
	inFlight  string
	lastErr   string
}

func NewState(opts ...StoreOption) *State {
	return &State{store: NewStore(opts...)}
}

// Store exposes the underlying conversation store.
func (s *State) Store() *Store {
	return s.store
}

// Select makes id the active conversation.
func (s *State) Select(id string) error {
	if !s.store.Has(id) {
		return errors.Wrapf(ErrNotFound, "select %s", id)
	}
	s.activeID = id
	return nil
}

// Clear unsets the active conversation.
func (s *State) Clear() {
	s.activeID = ""
}

// ActiveID returns the active conversation id, or "" when none is selected.
func (s *State) ActiveID() string {
	return s.activeID
}

// Current dereferences the active id.
func (s *State) Current() (*Conversation, bool) {
	if s.activeID == "" {
		return nil, false
	}
	conv, err := s.store.Get(s.activeID)
	if err != nil {
		return nil, false
	}
	return conv, true
}

// AutoReplyPending reports whether an example conversation still awaits its first reply.
func (s *State) AutoReplyPending() bool {
	return s.autoReply.pending()
}

// Busy reports whether a completion is in flight.
func (s *State) Busy() bool {
	return s.inFlight != ""
}

// LastError is the message of the most recent failed completion, until the next
// successful transition.
func (s *State) LastError() string {
	return s.lastErr
}

func (s *State) create(initial *models.Message) (string, error) {
	id, err := s.store.Create(initial)
	if err != nil {
		return "", err
	}
	s.activeID = id
	return id, nil
}

// Snapshot derives everything the presentation layer draws in one cycle.
func (s *State) Snapshot() models.View {
	view := models.View{
		Busy:             s.Busy(),
		AutoReplyPending: s.autoReply.pending(),
		LastError:        s.lastErr,
	}
	for _, sum := range s.store.ListOrdered() {
		view.Conversations = append(view.Conversations, models.ConversationSummary{
			ID:     sum.ID,
			Title:  sum.Title,
			Active: sum.ID == s.activeID,
		})
	}
	if view.Conversations == nil {
		view.Conversations = []models.ConversationSummary{}
	}
	if conv, ok := s.Current(); ok {
		view.Active = &models.Transcript{
			ID:        conv.ID,
			Title:     conv.Title,
			CreatedAt: conv.CreatedAt,
			Messages:  conv.Messages(),
		}
	}
	return view
}
