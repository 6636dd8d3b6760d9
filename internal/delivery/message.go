// Package delivery sends bot messages through a fallible transport with
// bounded retries, error-class backoff and payload-size mitigation.
package delivery

import (
	"context"
	"errors"
)

// MaxMessageLength is the transport's limit on message text, in characters.
const MaxMessageLength = 4096

// ErrNotModified is returned by a Transport when an edit would not change the message.
var ErrNotModified = errors.New("message is not modified")

// Button is one inline keyboard control.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of inline controls, one slice per row.
type Keyboard [][]Button

// Options tune how a message is shown.
type Options struct {
	ParseMode      string
	DisablePreview bool
	ThreadID       int
	Keyboard       Keyboard
}

// Message is an outgoing text message.
type Message struct {
	ChatID int64
	Text   string
	Options
}

// Edit replaces the text of a message already sent.
type Edit struct {
	ChatID    int64
	MessageID int
	Text      string
	Options
}

// Transport is the messaging API the engine drives. Implementations tag
// failures with fault kinds.
type Transport interface {
	Send(ctx context.Context, msg Message) (int, error)
	Edit(ctx context.Context, edit Edit) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}
