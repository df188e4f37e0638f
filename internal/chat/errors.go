package chat

import "github.com/pkg/errors"

var (
	// ErrNotFound means a conversation id is not present in the store. Under correct
	// wiring the presentation layer only sends ids it received from a snapshot.
	ErrNotFound = errors.New("conversation not found")
	// ErrEmptyMessage rejects blank user input and blank example prompts.
	ErrEmptyMessage = errors.New("message content is empty")
	// ErrBusy is returned while a completion for the session is in flight.
	ErrBusy = errors.New("a reply is already being generated")
)
