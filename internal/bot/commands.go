package bot

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/delivery"
	"github.com/JakeFAU/freebie-watch/internal/presenter"
	"github.com/JakeFAU/freebie-watch/internal/render"
	"github.com/JakeFAU/freebie-watch/internal/telegram"
)

// Commands understood by HandleUpdate.
const (
	CommandStart     = "start"
	CommandHelp      = "help"
	CommandGames     = "games"
	CommandNewGames  = "newgames"
	CommandEpic      = "epic"
	CommandEpicNew   = "epicnew"
	CommandChatID    = "chatid"
	fallbackUserName = "Пользователь"
	fallbackChatName = "Чат"
)

// HandleUpdate routes one inbound update. It never panics on bad input and
// reports problems to the chat or the log.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	if u.IsCallback() {
		b.handleCallback(ctx, u)
		return
	}
	name, args, ok := u.Command()
	if !ok {
		return
	}
	logger := b.logger.With(zap.String("command", name), zap.Int64("chat_id", u.ChatID))
	logger.Info("command received", zap.String("from", u.FromName), zap.String("args", args))

	switch name {
	case CommandStart:
		b.reply(ctx, u, render.Welcome(b.cfg.SiteName, b.cfg.Schedule), true)
	case CommandHelp:
		b.reply(ctx, u, render.Help(b.cfg.SiteName), true)
	case CommandChatID:
		b.reply(ctx, u, render.ChatIdentity(chatInfo(u)), true)
	case CommandGames:
		b.handleGames(ctx, u, args)
	case CommandNewGames:
		b.handleNewGames(ctx, u)
	case CommandEpic:
		b.handleEpic(ctx, u)
	case CommandEpicNew:
		b.handleEpicNew(ctx, u)
	default:
		logger.Debug("unknown command ignored")
	}
}

func chatInfo(u telegram.Update) render.ChatInfo {
	title := u.ChatTitle
	if u.ChatType == "private" {
		title = u.FromName
		if title == "" {
			title = fallbackUserName
		}
	} else if title == "" {
		title = fallbackChatName
	}
	return render.ChatInfo{
		ID:        u.ChatID,
		Type:      u.ChatType,
		Title:     title,
		TopicID:   u.ThreadID,
		TopicName: u.TopicName,
	}
}

func (b *Bot) reply(ctx context.Context, u telegram.Update, text string, html bool) bool {
	opts := delivery.Options{ThreadID: u.ThreadID}
	if html {
		opts.ParseMode = render.ParseModeHTML
	}
	return b.Delivery.Send(ctx, u.ChatID, text, opts, delivery.DefaultMaxAttempts)
}

// parsePage reads the optional 1-based page argument of /games.
func parsePage(args string) (int, error) {
	if args == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(args)
	if err != nil || page < 1 {
		return 0, errors.New("page must be a positive integer")
	}
	return page, nil
}

func (b *Bot) handleGames(ctx context.Context, u telegram.Update, args string) {
	page, err := parsePage(args)
	if err != nil {
		b.reply(ctx, u, render.BadPageNumber, false)
		return
	}
	b.Delivery.Send(ctx, u.ChatID, render.Loading(page), delivery.Options{ThreadID: u.ThreadID}, 1)

	found, err := b.Listings.Latest(ctx, page, b.cfg.CheckLimit)
	if err != nil {
		b.logger.Error("listing fetch failed", zap.Int("page", page), zap.Error(err))
	}
	if len(found) == 0 {
		b.reply(ctx, u, render.NoListings, false)
		return
	}

	shown := b.rememberShown(ctx, found)
	b.sendList(ctx, u, shown)

	pending := make([]catalog.Listing, 0, len(shown))
	for _, l := range shown {
		if l.Pending() {
			pending = append(pending, l)
		}
	}
	b.enrich(ctx, pending)
}

func (b *Bot) handleNewGames(ctx context.Context, u telegram.Update) {
	b.reply(ctx, u, render.CheckingNow, false)
	b.CheckListings(ctx)

	recent := b.ListingStore.LatestByUpdateRecency(b.cfg.CheckLimit)
	if len(recent) == 0 {
		b.reply(ctx, u, render.NoStoredItems, false)
		return
	}
	if len(recent) > b.cfg.RecentLimit {
		recent = recent[:b.cfg.RecentLimit]
	}
	b.reply(ctx, u, render.LatestHeader, true)
	b.sendList(ctx, u, recent)
}

func (b *Bot) handleEpic(ctx context.Context, u telegram.Update) {
	b.reply(ctx, u, render.CheckingEpicNow, false)
	found := b.Promotions.CurrentlyFree(ctx)
	if _, err := b.PromotionStore.UpsertAll(ctx, found); err != nil {
		b.logger.Warn("shown promotions kept in memory only", zap.Error(err))
	}
	b.sendPromotions(ctx, u, found)
}

func (b *Bot) handleEpicNew(ctx context.Context, u telegram.Update) {
	b.reply(ctx, u, render.CheckingEpicNow, false)
	b.CheckPromotions(ctx)
	b.sendPromotions(ctx, u, b.ActivePromotions())
}

func (b *Bot) sendPromotions(ctx context.Context, u telegram.Update, promotions []catalog.Promotion) {
	if len(promotions) == 0 {
		b.reply(ctx, u, render.NoPromotions, false)
		return
	}
	b.reply(ctx, u, render.ActiveHeader, true)
	for _, p := range promotions {
		b.Delivery.SendWithFallback(ctx, u.ChatID, render.Promotion(p, b.cfg.Location),
			delivery.Options{ParseMode: render.ParseModeHTML, ThreadID: u.ThreadID},
			delivery.DefaultMaxAttempts, render.MinimalPromotion(p))
	}
}

// sendList opens a pagination session for the chat and sends its first page.
func (b *Bot) sendList(ctx context.Context, u telegram.Update, items []catalog.Listing) {
	cursor := b.Sessions.Open(u.ChatID, items)
	opts := delivery.Options{
		ParseMode: render.ParseModeHTML,
		ThreadID:  u.ThreadID,
		Keyboard:  presenter.Controls(cursor),
	}
	if !b.Delivery.SendWithFallback(ctx, u.ChatID, presenter.Render(cursor), opts, b.cfg.ListAttempts, presenter.RenderPlain(cursor)) {
		b.logger.Error("listing page not delivered", zap.Int64("chat_id", u.ChatID))
	}
}

func (b *Bot) handleCallback(ctx context.Context, u telegram.Update) {
	if u.ChatID == 0 || u.MessageID == 0 || u.CallbackData == "" {
		b.Delivery.Answer(ctx, u.CallbackID, "", false)
		return
	}
	page, info, ok := presenter.ParseCallback(u.CallbackData)
	if !ok {
		b.Delivery.Answer(ctx, u.CallbackID, "", false)
		return
	}
	if _, exists := b.Sessions.Get(u.ChatID); !exists {
		b.Delivery.Answer(ctx, u.CallbackID, "", false)
		b.Delivery.Send(ctx, u.ChatID, render.SessionExpired, delivery.Options{ThreadID: u.ThreadID}, delivery.DefaultMaxAttempts)
		return
	}
	if info {
		b.Delivery.Answer(ctx, u.CallbackID, "", false)
		return
	}
	cursor, moved := b.Sessions.Jump(u.ChatID, page)
	if !moved {
		b.Delivery.Answer(ctx, u.CallbackID, "", false)
		return
	}
	err := b.Delivery.Edit(ctx, u.ChatID, u.MessageID, presenter.Render(cursor), delivery.Options{
		ParseMode: render.ParseModeHTML,
		Keyboard:  presenter.Controls(cursor),
	})
	if err != nil {
		b.logger.Warn("page edit failed", zap.Int64("chat_id", u.ChatID), zap.Int("page", page), zap.Error(err))
		b.Delivery.Answer(ctx, u.CallbackID, render.CallbackFailed, true)
		return
	}
	b.Delivery.Answer(ctx, u.CallbackID, "", false)
}
