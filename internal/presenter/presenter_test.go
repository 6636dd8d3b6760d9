package presenter

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/delivery"
)

func items(n int) []catalog.Listing {
	out := make([]catalog.Listing, 0, n)
	for i := 0; i < n; i++ {
		id := strconv.Itoa(i + 1)
		out = append(out, catalog.Listing{ID: id, Title: "Game " + id, URL: "https://x/" + id, Genres: []string{catalog.GenrePending}})
	}
	return out
}

func TestOpenOverwritesAndStartsAtFirstPage(t *testing.T) {
	t.Parallel()

	s := NewSessions()
	s.Open(1, items(3))
	_, ok := s.Jump(1, 2)
	require.True(t, ok)

	c := s.Open(1, items(2))
	require.Zero(t, c.Index)
	got, ok := s.Get(1)
	require.True(t, ok)
	require.Equal(t, 2, got.Pages())
	require.Zero(t, got.Index)
}

func TestJumpBounds(t *testing.T) {
	t.Parallel()

	s := NewSessions()
	_, ok := s.Jump(9, 0)
	require.False(t, ok, "unknown chat")

	s.Open(1, items(3))
	for _, page := range []int{-1, 3, 10} {
		_, ok := s.Jump(1, page)
		require.False(t, ok, "page %d", page)
		c, _ := s.Get(1)
		require.Zero(t, c.Index, "cursor unchanged after page %d", page)
	}

	c, ok := s.Jump(1, 2)
	require.True(t, ok)
	require.Equal(t, 2, c.Index)
}

func TestOpenCopiesItems(t *testing.T) {
	t.Parallel()

	s := NewSessions()
	in := items(2)
	s.Open(1, in)
	in[0].Title = "mutated"
	c, _ := s.Get(1)
	require.Equal(t, "Game 1", c.Items[0].Title)
}

func TestControls(t *testing.T) {
	t.Parallel()

	all := items(3)
	first := Controls(Cursor{Items: all, Index: 0})
	require.Len(t, first, 1)
	require.Equal(t, []delivery.Button{
		{Text: "1/3", Data: CallbackPageInfo},
		{Text: "Вперёд ▶️", Data: "page_1"},
	}, first[0])

	middle := Controls(Cursor{Items: all, Index: 1})[0]
	require.Len(t, middle, 3)
	require.Equal(t, "page_0", middle[0].Data)
	require.Equal(t, "2/3", middle[1].Text)
	require.Equal(t, "page_2", middle[2].Data)

	last := Controls(Cursor{Items: all, Index: 2})[0]
	require.Len(t, last, 2)
	require.Equal(t, "◀️ Назад", last[0].Text)

	single := Controls(Cursor{Items: all[:1]})[0]
	require.Equal(t, []delivery.Button{{Text: "1/1", Data: CallbackPageInfo}}, single)
}

func TestRender(t *testing.T) {
	t.Parallel()

	c := Cursor{Items: items(3), Index: 1}
	out := Render(c)
	assert.Contains(t, out, "<b>Game 2</b>")
	assert.True(t, strings.HasSuffix(out, "📄 Страница 2 из 3"))
	assert.Contains(t, RenderPlain(c), "🎮 Game 2")

	require.Equal(t, "❌ Игра не найдена", Render(Cursor{}))
}

func TestRenderFitsLimit(t *testing.T) {
	t.Parallel()

	long := items(1)
	long[0].Title = strings.Repeat("Очень длинное название ", 170)
	long[0].Description = strings.Repeat("описание ", 600)
	out := Render(Cursor{Items: long})
	require.LessOrEqual(t, utf8.RuneCountInString(out), delivery.MaxMessageLength)
}

func TestParseCallback(t *testing.T) {
	t.Parallel()

	page, info, ok := ParseCallback("page_4")
	require.True(t, ok)
	require.False(t, info)
	require.Equal(t, 4, page)

	_, info, ok = ParseCallback("page_info")
	require.True(t, ok)
	require.True(t, info)

	for _, bad := range []string{"", "page_", "page_x", "other"} {
		_, _, ok := ParseCallback(bad)
		require.False(t, ok, bad)
	}
}

func TestRefreshUpdatesCursors(t *testing.T) {
	t.Parallel()

	s := NewSessions()
	s.Open(1, items(2))
	s.Open(2, items(1))

	enriched := catalog.Listing{ID: "1", Title: "Game 1", Genres: []string{"Action"}}
	s.Refresh([]catalog.Listing{enriched})

	for _, chat := range []int64{1, 2} {
		c, _ := s.Get(chat)
		require.Equal(t, []string{"Action"}, c.Items[0].Genres)
	}
	c, _ := s.Get(1)
	require.Equal(t, []string{catalog.GenrePending}, c.Items[1].Genres)
}

func TestSessionsConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := NewSessions()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			s.Open(chat%4, items(3))
			s.Jump(chat%4, 1)
			s.Refresh(items(1))
		}(int64(i))
	}
	wg.Wait()
	for chat := int64(0); chat < 4; chat++ {
		_, ok := s.Get(chat)
		require.True(t, ok)
	}
}
