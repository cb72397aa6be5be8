package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

var noDelays = []time.Duration{0, 0, 0}

func TestTelegram_Send(t *testing.T) {
	var got sendMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true,"result":{}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "123:abc", "-100200", nil)
	require.NoError(t, tg.Send(context.Background(), "📊 <b>Actualización de Precios</b>"))

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "-100200", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.True(t, got.DisableWebPagePreview)
	assert.Equal(t, "📊 <b>Actualización de Precios</b>", got.Text)
}

func TestTelegram_RetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "123:abc", "-1", nil)
	tg.delays = noDelays

	err := tg.Send(context.Background(), "hola")
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeNotifier, models.CodeOf(err))
	assert.Contains(t, err.Error(), "chat not found")
	assert.Equal(t, int32(3), calls.Load())
}

func TestTelegram_RetrySucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "t", "c", nil)
	tg.delays = noDelays
	require.NoError(t, tg.Send(context.Background(), "hola"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	text := "aaaa\n\nbbbb\n\ncccc"
	assert.Equal(t, []string{"aaaa", "bbbb", "cccc"}, splitMessage(text, 8))

	for _, chunk := range splitMessage(strings.Repeat("ñ", 10), 5) {
		assert.LessOrEqual(t, len(chunk), 5)
		assert.True(t, strings.Trim(chunk, "ñ") == "", "chunk split a rune: %q", chunk)
	}
}

func TestWebhook_SignsPayload(t *testing.T) {
	var body []byte
	var sig, ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		sig = r.Header.Get(SignatureHeader)
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "s3cret", nil)
	wh.now = func() time.Time { return time.Unix(1760616000, 0) }
	require.NoError(t, wh.Send(context.Background(), "report body"))

	var ev Event
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.Equal(t, EventReportGenerated, ev.Type)
	assert.Equal(t, int64(1760616000), ev.Timestamp)
	assert.Equal(t, "report body", ev.Report)
	assert.Equal(t, "sha256="+Sign("s3cret", body), sig)
	assert.Equal(t, "Pricewatch-Webhook/1.0", ua)
}

func TestWebhook_NoSecretNoSignature(t *testing.T) {
	var sig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get(SignatureHeader)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL, "", nil).Send(context.Background(), "x"))
	assert.Empty(t, sig)
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := withRetry(ctx, discardLogger(), "test", []time.Duration{0, time.Hour}, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

type recorder struct {
	name string
	err  error
	got  []string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Send(_ context.Context, report string) error {
	r.got = append(r.got, report)
	return r.err
}

func TestMulti_TriesEveryNotifier(t *testing.T) {
	failing := &recorder{name: "a", err: errors.New("down")}
	ok := &recorder{name: "b"}

	err := Multi{failing, ok}.Send(context.Background(), "r")

	require.Error(t, err)
	assert.Equal(t, []string{"r"}, failing.got)
	assert.Equal(t, []string{"r"}, ok.got)
}

func TestFromConfig(t *testing.T) {
	assert.IsType(t, Log{}, FromConfig(config.NotifyConfig{}, nil))
	assert.IsType(t, &Telegram{}, FromConfig(config.NotifyConfig{TelegramToken: "t", TelegramChatID: "c"}, nil))
	assert.IsType(t, &Webhook{}, FromConfig(config.NotifyConfig{WebhookURL: "http://hook"}, nil))
	assert.IsType(t, Multi{}, FromConfig(config.NotifyConfig{
		TelegramToken: "t", TelegramChatID: "c", WebhookURL: "http://hook",
	}, nil))
	assert.NoError(t, Log{}.Send(context.Background(), "r"))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
