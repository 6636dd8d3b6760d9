package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/fault"
)

// Update is one inbound command message or callback query.
type Update struct {
	ID        int
	ChatID    int64
	ChatType  string
	ChatTitle string
	FromName  string
	MessageID int
	ThreadID  int
	TopicName string
	Text      string

	CallbackID   string
	CallbackData string
}

// IsCallback reports whether the update is a button press.
func (u Update) IsCallback() bool { return u.CallbackID != "" }

// Command splits a command message into its name without the leading slash
// or bot mention, and the trimmed arguments. ok is false for plain text.
func (u Update) Command() (name, args string, ok bool) {
	text := strings.TrimSpace(u.Text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// topicFields carries forum data the tgbotapi message type does not decode.
type topicFields struct {
	Message *struct {
		MessageThreadID int  `json:"message_thread_id"`
		IsTopicMessage  bool `json:"is_topic_message"`
		ReplyToMessage  *struct {
			ForumTopicCreated *struct {
				Name string `json:"name"`
			} `json:"forum_topic_created"`
		} `json:"reply_to_message"`
	} `json:"message"`
}

// Poll long-polls for updates and calls handle for each one until ctx ends.
// Poll failures are logged and retried after a delay.
func (c *Client) Poll(ctx context.Context, handle func(context.Context, Update)) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		updates, err := c.fetch(offset)
		if err != nil {
			c.logger.Warn("telegram poll failed",
				zap.Stringer("kind", fault.KindOf(err)),
				zap.Error(err))
			if err := sleepCtx(ctx, c.retryDelay); err != nil {
				return nil
			}
			continue
		}
		for _, u := range updates {
			if u.ID >= offset {
				offset = u.ID + 1
			}
			if u.ChatID == 0 {
				continue
			}
			handle(ctx, u)
		}
	}
}

func (c *Client) fetch(offset int) ([]Update, error) {
	params := tgbotapi.Params{}
	params.AddNonZero("offset", offset)
	params.AddNonZero("timeout", int(c.pollTimeout/time.Second))
	if err := params.AddInterface("allowed_updates", []string{"message", "callback_query"}); err != nil {
		return nil, fmt.Errorf("encode allowed updates: %w", err)
	}
	resp, err := c.api.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, classify("getUpdates", err)
	}
	return decodeUpdates(resp.Result)
}

func decodeUpdates(raw json.RawMessage) ([]Update, error) {
	var updates []tgbotapi.Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fault.New(fault.KindExtraction, "getUpdates", err)
	}
	var topics []topicFields
	if err := json.Unmarshal(raw, &topics); err != nil || len(topics) != len(updates) {
		topics = make([]topicFields, len(updates))
	}
	out := make([]Update, 0, len(updates))
	for i, u := range updates {
		out = append(out, convert(u, topics[i]))
	}
	return out, nil
}

func convert(u tgbotapi.Update, topic topicFields) Update {
	out := Update{ID: u.UpdateID}
	msg := u.Message
	if cq := u.CallbackQuery; cq != nil {
		out.CallbackID = cq.ID
		out.CallbackData = cq.Data
		msg = cq.Message
		if cq.From != nil {
			out.FromName = cq.From.FirstName
		}
	}
	if msg == nil || msg.Chat == nil {
		return out
	}
	out.ChatID = msg.Chat.ID
	out.ChatType = msg.Chat.Type
	out.ChatTitle = msg.Chat.Title
	out.MessageID = msg.MessageID
	if out.CallbackID == "" {
		out.Text = msg.Text
		if msg.From != nil {
			out.FromName = msg.From.FirstName
		}
	}
	if m := topic.Message; m != nil && m.IsTopicMessage {
		out.ThreadID = m.MessageThreadID
		if r := m.ReplyToMessage; r != nil && r.ForumTopicCreated != nil {
			out.TopicName = r.ForumTopicCreated.Name
		}
	}
	return out
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
