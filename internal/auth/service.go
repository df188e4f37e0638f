package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/pkg/errors"
)

const tokenBytes = 32

// Service issues the anonymous browser session and CSRF cookies. Sessions carry no
// user identity; the cookie only keys the in-memory conversation state.
type Service struct {
	cookieName     string
	csrfCookieName string
	csrfHeaderName string
	secure         bool
}

type Option func(*Service)

// WithSecureCookies marks issued cookies Secure, for deployments behind TLS.
func WithSecureCookies(secure bool) Option {
	return func(s *Service) {
		s.secure = secure
	}
}

func NewService(opts ...Option) *Service {
	s := &Service{
		cookieName:     "chat_session",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSessionID returns a fresh random session identifier.
func (s *Service) NewSessionID() (string, error) {
	return generateToken()
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

func (s *Service) sessionCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// csrfCookie stays readable by the page script, which echoes it in the header.
func (s *Service) csrfCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     s.csrfCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: false,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate token")
	}
	return hex.EncodeToString(buf), nil
}

// validToken reports whether value looks like a token this service issued.
func validToken(value string) bool {
	if len(value) != tokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}
