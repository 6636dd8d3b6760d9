package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/freebie-watch/internal/delivery"
	"github.com/JakeFAU/freebie-watch/internal/fault"
)

type botServer struct {
	mu       sync.Mutex
	forms    map[string][]map[string]string
	handlers map[string]func(w http.ResponseWriter, form map[string]string)
}

func newBotServer(t *testing.T) (*botServer, *Client) {
	t.Helper()
	bs := &botServer{
		forms:    map[string][]map[string]string{},
		handlers: map[string]func(http.ResponseWriter, map[string]string){},
	}
	srv := httptest.NewServer(http.HandlerFunc(bs.serve))
	t.Cleanup(srv.Close)

	client, err := New(Config{
		Token:       "123:abc",
		APIEndpoint: srv.URL + "/bot%s/%s",
		PollTimeout: time.Second,
		RetryDelay:  10 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return bs, client
}

func (bs *botServer) on(method string, h func(w http.ResponseWriter, form map[string]string)) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.handlers[method] = h
}

func (bs *botServer) calls(method string) []map[string]string {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.forms[method]
}

func (bs *botServer) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	bs.mu.Lock()
	bs.forms[method] = append(bs.forms[method], form)
	h := bs.handlers[method]
	bs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if method == "getMe" {
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Freebie","username":"freebie_bot"}}`)
		return
	}
	if h != nil {
		h(w, form)
		return
	}
	fmt.Fprint(w, `{"ok":true,"result":true}`)
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
}

func TestSendMessageParams(t *testing.T) {
	t.Parallel()

	bs, client := newBotServer(t)
	require.Equal(t, "freebie_bot", client.Username())
	bs.on("sendMessage", func(w http.ResponseWriter, _ map[string]string) {
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":77,"date":0,"chat":{"id":-100,"type":"supergroup"}}}`)
	})

	id, err := client.Send(context.Background(), delivery.Message{
		ChatID: -100,
		Text:   "<b>hi</b>",
		Options: delivery.Options{
			ParseMode: "HTML",
			ThreadID:  7,
			Keyboard:  delivery.Keyboard{{{Text: "1/2", Data: "page_info"}, {Text: "next", Data: "page_1"}}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 77, id)

	form := bs.calls("sendMessage")[0]
	assert.Equal(t, "-100", form["chat_id"])
	assert.Equal(t, "<b>hi</b>", form["text"])
	assert.Equal(t, "HTML", form["parse_mode"])
	assert.Equal(t, "7", form["message_thread_id"])
	assert.Contains(t, form["reply_markup"], `"callback_data":"page_1"`)
	assert.NotContains(t, form, "disable_web_page_preview")
}

func TestSendErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		body   string
		kind   fault.Kind
	}{
		{http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`, fault.KindRateLimited},
		{http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: message is too long"}`, fault.KindValidation},
		{http.StatusBadGateway, `{"ok":false,"error_code":502,"description":"Bad Gateway"}`, fault.KindTransient},
	}
	for _, tc := range cases {
		bs, client := newBotServer(t)
		bs.on("sendMessage", func(w http.ResponseWriter, _ map[string]string) {
			w.WriteHeader(tc.status)
			fmt.Fprint(w, tc.body)
		})
		_, err := client.Send(context.Background(), delivery.Message{ChatID: 1, Text: "x"})
		require.Error(t, err)
		assert.Equal(t, tc.kind, fault.KindOf(err), tc.body)
	}
}

func TestEditNotModified(t *testing.T) {
	t.Parallel()

	bs, client := newBotServer(t)
	bs.on("editMessageText", func(w http.ResponseWriter, form map[string]string) {
		assert.Equal(t, "10", form["message_id"])
		assert.NotContains(t, form, "message_thread_id")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified: specified new message content and reply markup are exactly the same"}`)
	})
	err := client.Edit(context.Background(), delivery.Edit{ChatID: 1, MessageID: 10, Text: "same", Options: delivery.Options{ThreadID: 3}})
	require.ErrorIs(t, err, delivery.ErrNotModified)
}

func TestAnswerCallback(t *testing.T) {
	t.Parallel()

	bs, client := newBotServer(t)
	require.NoError(t, client.AnswerCallback(context.Background(), "cb-1", "oops", true))
	form := bs.calls("answerCallbackQuery")[0]
	assert.Equal(t, "cb-1", form["callback_query_id"])
	assert.Equal(t, "true", form["show_alert"])
}

func TestCanceledContextSkipsRequest(t *testing.T) {
	t.Parallel()

	bs, client := newBotServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Send(ctx, delivery.Message{ChatID: 1, Text: "x"})
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, bs.calls("sendMessage"))
}

func TestPollDeliversUpdatesAndAdvancesOffset(t *testing.T) {
	t.Parallel()

	bs, client := newBotServer(t)
	var served int
	bs.on("getUpdates", func(w http.ResponseWriter, form map[string]string) {
		served++
		if served == 1 {
			fmt.Fprint(w, `{"ok":true,"result":[
				{"update_id":5,"message":{"message_id":1,"date":0,"text":"/games 2","chat":{"id":-100,"type":"supergroup","title":"Team"},"from":{"id":9,"is_bot":false,"first_name":"Ann"},"message_thread_id":7,"is_topic_message":true,"reply_to_message":{"message_id":0,"date":0,"chat":{"id":-100,"type":"supergroup"},"forum_topic_created":{"name":"Freebies"}}}},
				{"update_id":6,"callback_query":{"id":"cb","from":{"id":9,"is_bot":false,"first_name":"Ann"},"data":"page_1","message":{"message_id":33,"date":0,"chat":{"id":42,"type":"private"}}}}
			]}`)
			return
		}
		assert.Equal(t, "7", form["offset"])
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	var got []Update
	done := make(chan error, 1)
	go func() {
		done <- client.Poll(ctx, func(_ context.Context, u Update) {
			got = append(got, u)
			if len(got) == 2 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not stop")
	}

	require.Len(t, got, 2)
	msg := got[0]
	assert.Equal(t, int64(-100), msg.ChatID)
	assert.Equal(t, "Team", msg.ChatTitle)
	assert.Equal(t, "Ann", msg.FromName)
	assert.Equal(t, 7, msg.ThreadID)
	assert.Equal(t, "Freebies", msg.TopicName)
	name, args, ok := msg.Command()
	assert.True(t, ok)
	assert.Equal(t, "games", name)
	assert.Equal(t, "2", args)

	cb := got[1]
	assert.True(t, cb.IsCallback())
	assert.Equal(t, "page_1", cb.CallbackData)
	assert.Equal(t, int64(42), cb.ChatID)
	assert.Equal(t, 33, cb.MessageID)
	assert.Empty(t, cb.Text)
}

func TestCommandParsing(t *testing.T) {
	t.Parallel()

	name, args, ok := Update{Text: "/GAMES@freebie_bot  3 "}.Command()
	require.True(t, ok)
	require.Equal(t, "games", name)
	require.Equal(t, "3", args)

	_, _, ok = Update{Text: "hello"}.Command()
	require.False(t, ok)
	_, _, ok = Update{Text: "/"}.Command()
	require.False(t, ok)
}
