package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"chatclone/internal/api/web"
	"chatclone/internal/auth"
	"chatclone/internal/chat"
	"chatclone/internal/models"
	"chatclone/internal/service/ai"
	"chatclone/internal/worker"
)

// ChatManager runs conversation actions for one browser session at a time.
type ChatManager interface {
	View(sessionID string) models.View
	NewChat(ctx context.Context, sessionID string) (models.View, error)
	SelectConversation(ctx context.Context, sessionID, conversationID string) (models.View, error)
	SelectExample(ctx context.Context, sessionID, prompt string) (models.View, error)
	SubmitMessage(ctx context.Context, sessionID, text string) (models.View, error)
}

// Handler wires HTTP routes to the per-session chat manager.
type Handler struct {
	chats    ChatManager
	auth     *auth.Service
	renderer *Renderer
	examples []string
}

// NewHandler constructs a Handler instance.
func NewHandler(chats ChatManager, authService *auth.Service, examples []string) *Handler {
	return &Handler{
		chats:    chats,
		auth:     authService,
		renderer: NewRenderer(),
		examples: append([]string(nil), examples...),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.index)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
	api.GET("/state", h.getState)
	api.GET("/examples", h.listExamples)
	api.POST("/conversations", h.newChat)
	api.POST("/conversations/:id/select", h.selectConversation)
	api.POST("/examples/select", h.selectExample)
	api.POST("/messages", h.submitMessage)
}

func (h *Handler) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.Index)
}

func (h *Handler) sessionID(c *gin.Context) (string, bool) {
	id, ok := auth.SessionIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return "", false
	}
	return id, true
}

func (h *Handler) getState(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.renderView(h.chats.View(sessionID)))
}

func (h *Handler) listExamples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"examples": h.examples})
}

func (h *Handler) newChat(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	view, err := h.chats.NewChat(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, view, err)
		return
	}
	c.JSON(http.StatusCreated, h.renderView(view))
}

func (h *Handler) selectConversation(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id required"})
		return
	}
	view, err := h.chats.SelectConversation(c.Request.Context(), sessionID, conversationID)
	if err != nil {
		h.writeError(c, view, err)
		return
	}
	c.JSON(http.StatusOK, h.renderView(view))
}

type exampleRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) selectExample(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req exampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !h.isExample(req.Prompt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown example prompt"})
		return
	}
	view, err := h.chats.SelectExample(c.Request.Context(), sessionID, req.Prompt)
	if err != nil {
		h.writeError(c, view, err)
		return
	}
	c.JSON(http.StatusCreated, h.renderView(view))
}

type messageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) submitMessage(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	view, err := h.chats.SubmitMessage(c.Request.Context(), sessionID, req.Content)
	if err != nil {
		h.writeError(c, view, err)
		return
	}
	c.JSON(http.StatusOK, h.renderView(view))
}

func (h *Handler) isExample(prompt string) bool {
	for _, ex := range h.examples {
		if ex == prompt {
			return true
		}
	}
	return false
}

// writeError maps action failures to status codes. The body always carries the
// session view so the page can redraw after a failed action.
func (h *Handler) writeError(c *gin.Context, view models.View, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	var cerr *ai.CompletionError
	switch {
	case errors.Is(err, chat.ErrNotFound):
		status, msg = http.StatusNotFound, "conversation not found"
	case errors.Is(err, chat.ErrEmptyMessage):
		status, msg = http.StatusBadRequest, "message must not be empty"
	case errors.Is(err, chat.ErrBusy):
		status, msg = http.StatusConflict, "a reply is still being generated"
	case errors.Is(err, worker.ErrQueueFull):
		status, msg = http.StatusConflict, "server is busy, please retry"
	case errors.As(err, &cerr):
		status, msg = http.StatusBadGateway, "the assistant could not answer, please try again"
	case errors.Is(err, worker.ErrSessionClosed):
		status, msg = http.StatusServiceUnavailable, "session expired, please reload"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusServiceUnavailable, "request cancelled"
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Str("path", c.FullPath()).Msg("chat action failed")
	}
	c.JSON(status, gin.H{"error": msg, "state": h.renderView(view)})
}
