package delivery

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/fault"
	"github.com/JakeFAU/freebie-watch/internal/metrics"
)

// Delivery outcomes reported to metrics.
const (
	outcomeDelivered = "delivered"
	outcomeRejected  = "rejected"
	outcomeExhausted = "exhausted"
	outcomeFallback  = "fallback"
	outcomeDropped   = "dropped"
)

// DefaultMaxAttempts bounds sends when the caller passes zero.
const DefaultMaxAttempts = 3

// Config controls retries and topic routing.
type Config struct {
	// NotificationChatID receives scheduled notices. Messages to it without
	// an explicit thread go to TopicID when set.
	NotificationChatID int64
	TopicID            int
	// BaseDelay is the backoff unit; rate limits and transient faults wait twice as long.
	BaseDelay time.Duration
}

// Engine delivers messages and never returns transport failures to callers.
type Engine struct {
	transport Transport
	cfg       Config
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSleep replaces the backoff wait, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = fn }
}

// New returns an Engine over transport.
func New(transport Transport, cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	e := &Engine{transport: transport, cfg: cfg, logger: logger, sleep: sleepCtx}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NotificationChatID returns the configured notice chat, zero when unset.
func (e *Engine) NotificationChatID() int64 { return e.cfg.NotificationChatID }

func (e *Engine) route(chatID int64, opts Options) Options {
	if opts.ThreadID == 0 && e.cfg.TopicID > 0 && e.cfg.NotificationChatID != 0 && chatID == e.cfg.NotificationChatID {
		opts.ThreadID = e.cfg.TopicID
	}
	return opts
}

// Backoff reports how long to wait before retrying after err on the given
// 1-based attempt, and whether a retry is worthwhile at all.
func (e *Engine) Backoff(err error, attempt int) (time.Duration, bool) {
	unit := e.cfg.BaseDelay * time.Duration(attempt)
	switch fault.KindOf(err) {
	case fault.KindValidation:
		return 0, false
	case fault.KindRateLimited, fault.KindTransient:
		return 2 * unit, true
	default:
		return unit, true
	}
}

// Send tries to deliver text up to maxAttempts times and reports success.
func (e *Engine) Send(ctx context.Context, chatID int64, text string, opts Options, maxAttempts int) bool {
	_, ok := e.send(ctx, Message{ChatID: chatID, Text: text, Options: e.route(chatID, opts)}, maxAttempts)
	return ok
}

// SendMessage is Send that also returns the delivered message id.
func (e *Engine) SendMessage(ctx context.Context, chatID int64, text string, opts Options, maxAttempts int) (int, bool) {
	return e.send(ctx, Message{ChatID: chatID, Text: text, Options: e.route(chatID, opts)}, maxAttempts)
}

// SendWithFallback behaves like Send; when every attempt fails it sends
// fallback once as plain text, keeping the keyboard.
func (e *Engine) SendWithFallback(ctx context.Context, chatID int64, text string, opts Options, maxAttempts int, fallback string) bool {
	if e.Send(ctx, chatID, text, opts, maxAttempts) {
		return true
	}
	if fallback == "" {
		return false
	}
	plain := e.route(chatID, Options{Keyboard: opts.Keyboard, ThreadID: opts.ThreadID})
	if _, err := e.transport.Send(ctx, Message{ChatID: chatID, Text: fallback, Options: plain}); err != nil {
		metrics.ObserveDelivery(outcomeDropped)
		e.logger.Error("fallback message failed, dropping",
			zap.Int64("chat_id", chatID),
			zap.Stringer("kind", fault.KindOf(err)),
			zap.Error(err))
		return false
	}
	metrics.ObserveDelivery(outcomeFallback)
	e.logger.Info("fallback message delivered", zap.Int64("chat_id", chatID))
	return true
}

func (e *Engine) send(ctx context.Context, msg Message, maxAttempts int) (int, bool) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		id, err := e.transport.Send(ctx, msg)
		if err == nil {
			metrics.ObserveDelivery(outcomeDelivered)
			return id, true
		}
		kind := fault.KindOf(err)
		wait, retry := e.Backoff(err, attempt)
		if !retry {
			metrics.ObserveDelivery(outcomeRejected)
			e.logger.Error("message rejected, not retrying",
				zap.Int64("chat_id", msg.ChatID),
				zap.Int("length", len([]rune(msg.Text))),
				zap.Stringer("kind", kind),
				zap.Error(err))
			return 0, false
		}
		if attempt == maxAttempts {
			break
		}
		e.logger.Warn("send attempt failed",
			zap.Int64("chat_id", msg.ChatID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Stringer("kind", kind),
			zap.Duration("wait", wait),
			zap.Error(err))
		if err := e.sleep(ctx, wait); err != nil {
			e.logger.Warn("send abandoned", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
			metrics.ObserveDelivery(outcomeExhausted)
			return 0, false
		}
	}
	metrics.ObserveDelivery(outcomeExhausted)
	e.logger.Error("all send attempts exhausted", zap.Int64("chat_id", msg.ChatID), zap.Int("max_attempts", maxAttempts))
	return 0, false
}

// Edit replaces a message's text once. An unchanged message counts as success.
func (e *Engine) Edit(ctx context.Context, chatID int64, messageID int, text string, opts Options) error {
	err := e.transport.Edit(ctx, Edit{ChatID: chatID, MessageID: messageID, Text: text, Options: opts})
	if err == nil || errors.Is(err, ErrNotModified) {
		return nil
	}
	e.logger.Warn("edit failed", zap.Int64("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
	return err
}

// Answer acknowledges a callback query; failures are only logged.
func (e *Engine) Answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := e.transport.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		e.logger.Debug("answer callback failed", zap.String("callback_id", callbackID), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
