package delivery

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// LogTransport writes messages to a logger instead of a chat. One-shot CLI
// runs use it when no bot token is configured.
type LogTransport struct {
	logger *zap.Logger
	nextID atomic.Int64
}

// NewLogTransport returns a LogTransport over logger.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger}
}

// Send logs msg and returns a sequential message id.
func (t *LogTransport) Send(ctx context.Context, msg Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id := int(t.nextID.Add(1))
	t.logger.Info("message",
		zap.Int64("chat_id", msg.ChatID),
		zap.Int("thread_id", msg.ThreadID),
		zap.Int("message_id", id),
		zap.String("text", msg.Text))
	return id, nil
}

// Edit logs the replacement text.
func (t *LogTransport) Edit(ctx context.Context, edit Edit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.logger.Info("message edited",
		zap.Int64("chat_id", edit.ChatID),
		zap.Int("message_id", edit.MessageID),
		zap.String("text", edit.Text))
	return nil
}

// AnswerCallback is a no-op.
func (t *LogTransport) AnswerCallback(context.Context, string, string, bool) error {
	return nil
}
