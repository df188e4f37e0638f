package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionIDContextKey = "chat_session_id"

// Middleware attaches the browser session to the context, issuing the session and CSRF
// cookies on first contact or when the presented session cookie is malformed.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(s.cookieName)
		if err != nil || !validToken(sessionID) {
			sessionID, err = s.NewSessionID()
			if err != nil {
				log.Error().Err(err).Msg("issue session")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
				return
			}
			http.SetCookie(c.Writer, s.sessionCookie(sessionID))
		}
		if token, err := c.Cookie(s.csrfCookieName); err != nil || !validToken(token) {
			token, err = s.NewCSRFToken()
			if err != nil {
				log.Error().Err(err).Msg("issue csrf token")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
				return
			}
			http.SetCookie(c.Writer, s.csrfCookie(token))
		}
		c.Set(sessionIDContextKey, sessionID)
		c.Next()
	}
}

// SessionIDFromContext retrieves the browser session id stored by the middleware.
func SessionIDFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(sessionIDContextKey)
	if !ok {
		return "", false
	}
	sessionID, ok := val.(string)
	return sessionID, ok && sessionID != ""
}
