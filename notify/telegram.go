package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// telegramLimit is the maximum text length of one sendMessage call.
const telegramLimit = 4096

// Telegram sends reports through the Bot API sendMessage method using HTML
// parse mode.
type Telegram struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
	logger  *slog.Logger
	delays  []time.Duration
}

// NewTelegram creates a Telegram notifier. An empty apiBase uses the public
// Bot API.
func NewTelegram(apiBase, token, chatID string, logger *slog.Logger) *Telegram {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
		delays:  deliveryDelays,
	}
}

func (t *Telegram) Name() string { return "telegram" }

type sendMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers report, split into several messages when it exceeds the
// Bot API limit.
func (t *Telegram) Send(ctx context.Context, report string) error {
	for _, chunk := range splitMessage(report, telegramLimit) {
		if err := withRetry(ctx, t.logger, t.Name(), t.delays, func(ctx context.Context) error {
			return t.send(ctx, chunk)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessage{
		ChatID:                t.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The token is part of the URL; keep it out of logs.
		return fmt.Errorf("telegram: deliver: %s", strings.ReplaceAll(err.Error(), t.token, "<token>"))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var ar apiResponse
	_ = json.Unmarshal(raw, &ar)
	if resp.StatusCode >= 400 || !ar.OK {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, ar.Description)
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// blank-line boundaries so sections stay together.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(text[:limit], "\n")
		}
		if cut <= 0 {
			cut = limit
			// Do not split a multi-byte rune.
			for cut > 0 && text[cut]&0xC0 == 0x80 {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
