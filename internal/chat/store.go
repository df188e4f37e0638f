package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"chatclone/internal/models"
)

// Conversation is a titled, append-only list of messages.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time

	placeholder bool
	messages    []models.Message
}

// Messages returns a copy of the ordered history.
func (c *Conversation) Messages() []models.Message {
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len reports how many messages the conversation holds.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// HasPlaceholderTitle reports whether the conversation still carries its "New Chat (n)" label.
func (c *Conversation) HasPlaceholderTitle() bool {
	return c.placeholder
}

func (c *Conversation) last() (models.Message, bool) {
	if len(c.messages) == 0 {
		return models.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Store maps conversation ids to conversations, remembering creation order.
type Store struct {
	conversations *orderedmap.OrderedMap[string, *Conversation]
	newID         func() string
	now           func() time.Time
}

// StoreOption customises a Store; used by tests to pin ids and clocks.
type StoreOption func(*Store)

func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func WithClock(fn func() time.Time) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		conversations: orderedmap.New[string, *Conversation](),
		newID:         uuid.NewString,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new conversation and returns its id. Without an initial message the
// conversation gets a placeholder title numbered by creation ordinal; with one, the title
// is derived from the message and the message becomes the first entry.
func (s *Store) Create(initial *models.Message) (string, error) {
	conv := &Conversation{CreatedAt: s.now().UTC()}
	if initial == nil {
		conv.Title = placeholderTitle(s.conversations.Len() + 1)
		conv.placeholder = true
	} else {
		if strings.TrimSpace(initial.Content) == "" {
			return "", ErrEmptyMessage
		}
		if !initial.Role.Valid() {
			return "", errors.Errorf("invalid role %q", initial.Role)
		}
		conv.Title = DeriveTitle(initial.Content, ExampleTitleLimit)
		conv.messages = []models.Message{*initial}
	}
	conv.ID = s.freshID()
	s.conversations.Set(conv.ID, conv)
	return conv.ID, nil
}

func (s *Store) freshID() string {
	for {
		id := s.newID()
		if _, taken := s.conversations.Get(id); !taken && id != "" {
			return id
		}
	}
}

// Get returns the conversation stored under id.
func (s *Store) Get(id string) (*Conversation, error) {
	conv, ok := s.conversations.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return conv, nil
}

// Has reports whether id keys a conversation.
func (s *Store) Has(id string) bool {
	_, ok := s.conversations.Get(id)
	return ok
}

// Append adds msg to the end of the conversation's history.
func (s *Store) Append(id string, msg models.Message) error {
	conv, err := s.Get(id)
	if err != nil {
		return err
	}
	if !msg.Role.Valid() {
		return errors.Errorf("invalid role %q", msg.Role)
	}
	conv.messages = append(conv.messages, msg)
	return nil
}

// RetitleIfPlaceholder replaces a placeholder title with one derived from candidate, but
// only while the conversation holds exactly one message. Once applied, later calls are no-ops.
func (s *Store) RetitleIfPlaceholder(id, candidate string) error {
	conv, err := s.Get(id)
	if err != nil {
		return err
	}
	if !conv.placeholder || len(conv.messages) != 1 {
		return nil
	}
	title := DeriveTitle(candidate, RetitleLimit)
	if title == "" {
		return nil
	}
	conv.Title = title
	conv.placeholder = false
	return nil
}

// Summary is one (id, title) pair of ListOrdered.
type Summary struct {
	ID    string
	Title string
}

// ListOrdered returns all conversations, most recently created first.
func (s *Store) ListOrdered() []Summary {
	out := make([]Summary, 0, s.conversations.Len())
	for pair := s.conversations.Newest(); pair != nil; pair = pair.Prev() {
		out = append(out, Summary{ID: pair.Key, Title: pair.Value.Title})
	}
	return out
}

// Len reports the number of conversations.
func (s *Store) Len() int {
	return s.conversations.Len()
}
