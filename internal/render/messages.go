package render

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

// Fixed replies.
const (
	NoListings      = "❌ Игры не найдены. Возможно, проблема с парсингом сайта."
	NoPromotions    = "📭 Сейчас бесплатных раздач не найдено."
	NoStoredItems   = "✅ Проверка завершена. Новых игр не найдено."
	NotFound        = "❌ Игра не найдена"
	SessionExpired  = "❌ Сессия истекла. Используйте команду /games для получения списка игр."
	CallbackFailed  = "Произошла ошибка"
	BadPageNumber   = "❌ Номер страницы должен быть положительным числом. Пример: /games 2"
	CheckingNow     = "🔍 Проверяю новые игры..."
	CheckingEpicNow = "🔍 Проверяю бесплатные раздачи..."
	LatestHeader    = "✅ Проверка завершена. Последние игры:"
	ActiveHeader    = "🎁 <b>Сейчас бесплатно:</b>"
)

// Loading acknowledges a list request before the fetch completes.
func Loading(page int) string {
	if page > 1 {
		return fmt.Sprintf("⏳ Загружаю список игр со страницы %d...", page)
	}
	return "⏳ Загружаю список игр..."
}

// Failure reports an unexpected error to the requesting chat.
func Failure(action string, err error) string {
	return fmt.Sprintf("❌ Ошибка при %s: %s", action, err)
}

// Welcome is the /start reply.
func Welcome(site, schedule string) string {
	return fmt.Sprintf(`👋 Привет! Я бот для отслеживания бесплатных игр с %s и Epic Games Store

📋 <b>Доступные команды:</b>
/games - Показать последние 10 игр с главной страницы
/games &lt;номер&gt; - Показать игры со страницы (например: /games 2)
/newgames - Проверить новые игры
/epic - Показать текущие бесплатные раздачи Epic Games Store
/epicnew - Проверить новые раздачи Epic Games Store
/chatid - Показать ID чата для уведомлений
/help - Показать справку

Бот автоматически проверяет новинки по расписанию <code>%s</code>.`, Escape(site), Escape(schedule))
}

// Help is the /help reply.
func Help(site string) string {
	return fmt.Sprintf(`📚 <b>Справка по командам:</b>

/games - Получить список из 10 последних игр с главной страницы %[1]s
/games &lt;номер&gt; - Получить список игр с указанной страницы (например: /games 2)

/newgames - Вручную проверить наличие новых игр (бот также делает это автоматически)

/epic - Показать раздачи Epic Games Store, бесплатные прямо сейчас
/epicnew - Вручную проверить новые раздачи Epic Games Store

/chatid - Показать ID текущего чата (для настройки уведомлений)

/help - Показать эту справку

<b>Автоматические уведомления:</b>
Чтобы получать уведомления о новых играх, укажите ID чата в настройке <code>telegram.notification_chat_id</code> (или переменной NOTIFICATION_CHAT_ID).`, Escape(site))
}

// ChatInfo describes the chat a /chatid command came from.
type ChatInfo struct {
	ID        int64
	Type      string
	Title     string
	TopicID   int
	TopicName string
}

func chatTypeText(t string) string {
	switch t {
	case "private":
		return "Личный чат"
	case "group", "supergroup":
		return "Группа"
	default:
		return "Канал"
	}
}

// ChatIdentity is the /chatid reply.
func ChatIdentity(info ChatInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>Информация о чате:</b>\n\n🆔 <b>Chat ID:</b> <code>%d</code>\n👤 <b>Название:</b> %s\n📝 <b>Тип:</b> %s",
		info.ID, Escape(info.Title), chatTypeText(info.Type))
	topic := info.TopicID != 0
	if topic {
		name := info.TopicName
		if name == "" {
			name = Display(catalog.TitleUntitled)
		}
		fmt.Fprintf(&b, "\n\n📌 <b>Topic ID:</b> <code>%d</code>\n💬 <b>Тема:</b> %s", info.TopicID, Escape(name))
	}
	fmt.Fprintf(&b, "\n\n<b>Как использовать:</b>\nСкопируйте Chat ID выше и добавьте его в файл .env:\n<code>NOTIFICATION_CHAT_ID=%d</code>", info.ID)
	if topic {
		fmt.Fprintf(&b, "\n\nДля отправки в эту тему также добавьте:\n<code>NOTIFICATION_TOPIC_ID=%d</code>", info.TopicID)
	}
	where := " в этот чат"
	if topic {
		where = " в эту тему"
	}
	fmt.Fprintf(&b, "\n\nПосле этого перезапустите бота, и уведомления будут приходить%s.", where)
	return b.String()
}
