package api

import (
	"time"

	"chatclone/internal/models"
)

type messageView struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
	HTML    string      `json:"html"`
}

type transcriptView struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	Messages  []messageView `json:"messages"`
}

type stateView struct {
	Conversations    []models.ConversationSummary `json:"conversations"`
	Active           *transcriptView              `json:"active,omitempty"`
	Busy             bool                         `json:"busy"`
	AutoReplyPending bool                         `json:"auto_reply_pending"`
	LastError        string                       `json:"last_error,omitempty"`
}

func (h *Handler) renderView(view models.View) stateView {
	out := stateView{
		Conversations:    view.Conversations,
		Busy:             view.Busy,
		AutoReplyPending: view.AutoReplyPending,
		LastError:        view.LastError,
	}
	if out.Conversations == nil {
		out.Conversations = []models.ConversationSummary{}
	}
	if view.Active != nil {
		t := &transcriptView{
			ID:        view.Active.ID,
			Title:     view.Active.Title,
			CreatedAt: view.Active.CreatedAt,
			Messages:  make([]messageView, 0, len(view.Active.Messages)),
		}
		for _, m := range view.Active.Messages {
			t.Messages = append(t.Messages, messageView{
				Role:    m.Role,
				Content: m.Content,
				HTML:    h.renderer.Render(m.Content),
			})
		}
		out.Active = t
	}
	return out
}
