// Package render formats catalog items and bot replies as Telegram HTML.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

// ParseModeHTML is the Telegram parse mode every rich message here uses.
const ParseModeHTML = "HTML"

// PreviewDescriptionLen caps the description shown in a listing card, in runes.
const PreviewDescriptionLen = 200

const (
	timestampLayout = "02.01.2006, 15:04:05"
	windowLayout    = "02.01.2006 15:04"
)

var sentinelText = map[string]string{
	catalog.GenrePending:      "Загрузка...",
	catalog.GenreUnspecified:  "Не указано",
	catalog.AuthorUnknown:     "Неизвестно",
	catalog.UpdateDateUnknown: "Дата не указана",
	catalog.TitleUntitled:     "Без названия",
}

// Display maps stored sentinels to their user-facing text.
func Display(s string) string {
	if text, ok := sentinelText[s]; ok {
		return text
	}
	return s
}

// Escape escapes text for Telegram HTML.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Genres renders the genre list, showing the pending marker while enrichment runs.
func Genres(genres []string) string {
	shown := make([]string, 0, len(genres))
	for _, g := range genres {
		if g == catalog.GenrePending {
			return Display(catalog.GenrePending)
		}
		if g == catalog.GenreUnspecified || strings.TrimSpace(g) == "" {
			continue
		}
		shown = append(shown, g)
	}
	if len(shown) == 0 {
		return Display(catalog.GenreUnspecified)
	}
	return strings.Join(shown, ", ")
}

func preview(description string) string {
	if utf8.RuneCountInString(description) <= PreviewDescriptionLen {
		return description
	}
	return catalog.TruncateRunes(description, PreviewDescriptionLen) + "..."
}

// Listing renders one catalog listing card.
func Listing(l catalog.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎮 <b>%s</b>\n\n", Escape(Display(l.Title)))
	fmt.Fprintf(&b, "📅 Обновлено: %s\n", Escape(Display(l.UpdateDate)))
	fmt.Fprintf(&b, "🎯 Жанры: %s\n", Escape(Genres(l.Genres)))
	fmt.Fprintf(&b, "👤 Автор: %s\n\n", Escape(Display(l.Author)))
	if l.Description != "" {
		fmt.Fprintf(&b, "📝 %s\n\n", Escape(preview(l.Description)))
	}
	fmt.Fprintf(&b, `🔗 <a href="%s">Подробнее</a>`, Escape(l.URL))
	return b.String()
}

// PageFooter renders the page indicator appended to paginated cards.
func PageFooter(index, total int) string {
	return fmt.Sprintf("\n\n📄 Страница %d из %d", index+1, total)
}

// NewListing renders the announcement for a newly detected listing.
func NewListing(l catalog.Listing, site string) string {
	return fmt.Sprintf("🆕 <b>Новая игра на %s!</b>\n\n%s", Escape(site), Listing(l))
}

// PlainListing renders a listing without markup, for the fallback path.
func PlainListing(l catalog.Listing) string {
	return fmt.Sprintf("🎮 %s\n\n📅 Обновлено: %s\n🎯 Жанры: %s\n👤 Автор: %s\n\n🔗 %s",
		Display(l.Title), Display(l.UpdateDate), Genres(l.Genres), Display(l.Author), l.URL)
}

// MinimalListing is the last-resort plain text for a listing.
func MinimalListing(l catalog.Listing) string {
	return fmt.Sprintf("🎮 %s\n\n🔗 %s", Display(l.Title), l.URL)
}

// Promotion renders one free storefront offer.
func Promotion(p catalog.Promotion, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🎁 <b>%s</b>\n\n", Escape(Display(p.Title)))
	fmt.Fprintf(&b, "⏳ Бесплатно до: %s\n", p.EndDate.In(loc).Format(windowLayout))
	if p.OriginalPrice != "" {
		fmt.Fprintf(&b, "💰 Обычная цена: <s>%s</s>\n", Escape(p.OriginalPrice))
	}
	if p.Publisher != "" {
		fmt.Fprintf(&b, "🏢 Издатель: %s\n", Escape(p.Publisher))
	}
	if p.Developer != "" && p.Developer != p.Publisher {
		fmt.Fprintf(&b, "🛠 Разработчик: %s\n", Escape(p.Developer))
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "\n📝 %s\n", Escape(preview(p.Description)))
	}
	fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">Забрать в магазине</a>", Escape(p.URL))
	return b.String()
}

// NewPromotion renders the announcement for a newly detected free offer.
func NewPromotion(p catalog.Promotion, loc *time.Location) string {
	return "🆕 <b>Новая бесплатная раздача в Epic Games Store!</b>\n\n" + Promotion(p, loc)
}

// MinimalPromotion is the last-resort plain text for an offer.
func MinimalPromotion(p catalog.Promotion) string {
	return fmt.Sprintf("🎁 %s\n\n🔗 %s", Display(p.Title), p.URL)
}

// Timestamp formats t the way check notices show it.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

func checkSubject(kind catalog.CheckKind) string {
	if kind == catalog.CheckPromotions {
		return "бесплатных раздач"
	}
	return "новых игр"
}

// CheckStarted announces a scheduled check.
func CheckStarted(kind catalog.CheckKind, at time.Time) string {
	return fmt.Sprintf("🔍 <b>Автоматическая проверка %s</b>\n\n⏰ Время: %s\n\n⏳ Начинаю парсинг сайта...",
		checkSubject(kind), Timestamp(at))
}

// CheckFinished summarizes a completed check.
func CheckFinished(r catalog.CheckReport) string {
	if r.Error != "" {
		return fmt.Sprintf("❌ <b>Ошибка при проверке %s</b>\n\n⏰ Время: %s\n\n🔴 %s",
			checkSubject(r.Kind), Timestamp(r.StartedAt), Escape(r.Error))
	}
	if len(r.NewIDs) == 0 {
		return fmt.Sprintf("✅ <b>Проверка завершена</b>\n\n📭 Ничего нового не найдено\n⏰ Время: %s", Timestamp(r.StartedAt))
	}
	return fmt.Sprintf("✅ <b>Проверка завершена!</b>\n\n🆕 Найдено новых: <b>%d</b>\n⏰ Время: %s",
		len(r.NewIDs), Timestamp(r.StartedAt))
}
