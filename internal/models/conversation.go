package models

import "time"

// ConversationSummary is the sidebar entry for one conversation.
type ConversationSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// Transcript is the active conversation as shown to the user.
type Transcript struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// View is everything the page needs to draw one render cycle.
type View struct {
	Conversations    []ConversationSummary `json:"conversations"`
	Active           *Transcript           `json:"active,omitempty"`
	Busy             bool                  `json:"busy"`
	AutoReplyPending bool                  `json:"auto_reply_pending"`
	LastError        string                `json:"last_error,omitempty"`
}
