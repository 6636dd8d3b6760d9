// Package telegram adapts the Telegram Bot API to the delivery transport and
// turns long-polled updates into plain values for the bot.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/delivery"
	"github.com/JakeFAU/freebie-watch/internal/fault"
)

const notModifiedText = "message is not modified"

// Config holds the bot credentials and polling settings.
type Config struct {
	Token string
	// APIEndpoint is a format string taking the token and method, as tgbotapi expects.
	APIEndpoint string
	PollTimeout time.Duration
	RetryDelay  time.Duration
}

// Client implements delivery.Transport and polls for updates.
type Client struct {
	api         *tgbotapi.BotAPI
	logger      *zap.Logger
	pollTimeout time.Duration
	retryDelay  time.Duration
}

// New authenticates with the Bot API and returns a client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.PollTimeout + 15*time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connect to bot api: %w", classify("getMe", err))
	}
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Client{api: api, logger: logger, pollTimeout: cfg.PollTimeout, retryDelay: cfg.RetryDelay}, nil
}

// Username returns the bot's username.
func (c *Client) Username() string { return c.api.Self.UserName }

// Send posts a message and returns its id.
func (c *Client) Send(ctx context.Context, msg delivery.Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fault.FromNetwork("sendMessage", err)
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", msg.ChatID)
	params["text"] = msg.Text
	if err := addOptions(params, msg.Options); err != nil {
		return 0, fault.New(fault.KindValidation, "sendMessage", err)
	}
	resp, err := c.api.MakeRequest("sendMessage", params)
	if err != nil {
		return 0, classify("sendMessage", err)
	}
	var sent tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &sent); err != nil {
		return 0, fault.New(fault.KindUnknown, "sendMessage", fmt.Errorf("decode result: %w", err))
	}
	return sent.MessageID, nil
}

// Edit replaces the text of a sent message.
func (c *Client) Edit(ctx context.Context, edit delivery.Edit) error {
	if err := ctx.Err(); err != nil {
		return fault.FromNetwork("editMessageText", err)
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", edit.ChatID)
	params.AddNonZero("message_id", edit.MessageID)
	params["text"] = edit.Text
	opts := edit.Options
	opts.ThreadID = 0
	if err := addOptions(params, opts); err != nil {
		return fault.New(fault.KindValidation, "editMessageText", err)
	}
	if _, err := c.api.MakeRequest("editMessageText", params); err != nil {
		return classify("editMessageText", err)
	}
	return nil
}

// AnswerCallback acknowledges a callback query.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return fault.FromNetwork("answerCallbackQuery", err)
	}
	params := tgbotapi.Params{}
	params.AddNonEmpty("callback_query_id", callbackID)
	params.AddNonEmpty("text", text)
	params.AddBool("show_alert", alert)
	if _, err := c.api.MakeRequest("answerCallbackQuery", params); err != nil {
		return classify("answerCallbackQuery", err)
	}
	return nil
}

func addOptions(params tgbotapi.Params, opts delivery.Options) error {
	params.AddNonEmpty("parse_mode", opts.ParseMode)
	params.AddBool("disable_web_page_preview", opts.DisablePreview)
	params.AddNonZero("message_thread_id", opts.ThreadID)
	if len(opts.Keyboard) > 0 {
		return params.AddInterface("reply_markup", keyboardMarkup(opts.Keyboard))
	}
	return nil
}

func keyboardMarkup(kb delivery.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// classify tags Bot API and network failures with fault kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	apiErr, ok := asAPIError(err)
	if !ok {
		return fault.FromNetwork(op, err)
	}
	if strings.Contains(apiErr.Message, notModifiedText) {
		return fault.New(fault.KindValidation, op, fmt.Errorf("%w: %s", delivery.ErrNotModified, apiErr.Message))
	}
	return fault.FromStatus(op, apiErr.Code, fmt.Errorf("telegram %s: %s", strconv.Itoa(apiErr.Code), apiErr.Message))
}

func asAPIError(err error) (tgbotapi.Error, bool) {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return val, true
	}
	return tgbotapi.Error{}, false
}
