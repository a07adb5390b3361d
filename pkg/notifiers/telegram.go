package notifiers

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ironscout-hq/ironscout/internal/domain"
	"github.com/ironscout-hq/ironscout/pkg/httpclient"
)

const (
	telegramAPIBase        = "https://api.telegram.org"
	telegramRequestTimeout = 15 * time.Second
	telegramSendInterval   = time.Second
)

// telegramNotifier delivers listing notifications through the Telegram Bot
// API. Listings with an image go out as a photo with an HTML caption; the
// plain message endpoint is the fallback. Consecutive sends are spaced out to
// stay under the Bot API flood limits.
type telegramNotifier struct {
	id           string
	typ          string
	token        string
	chatID       string
	apiBase      string
	sendInterval time.Duration
	client       *resty.Client
	log          Logger

	mu       sync.Mutex
	lastSend time.Time
}

func newTelegramNotifier(_ context.Context, cfg NotifierConfig, log Logger) (Notifier, error) {
	if cfg.Telegram == nil {
		return nil, fmt.Errorf("notifier %q missing telegram configuration", cfg.ID)
	}

	return &telegramNotifier{
		id:           cfg.ID,
		typ:          TypeTelegram,
		token:        cfg.Telegram.BotToken,
		chatID:       cfg.Telegram.ChatID,
		apiBase:      telegramAPIBase,
		sendInterval: telegramSendInterval,
		client:       httpclient.NewRestyHTTPClient(telegramRequestTimeout),
		log:          ensureLogger(log),
	}, nil
}

func (t *telegramNotifier) ID() string   { return t.id }
func (t *telegramNotifier) Type() string { return t.typ }

func (t *telegramNotifier) Notify(ctx context.Context, evt Event) error {
	if err := t.throttle(ctx); err != nil {
		return err
	}

	message := t.formatMessage(evt)

	if evt.Kind == KindListing && evt.Machine.ImageURL != "" {
		if err := t.sendPhoto(ctx, evt.Machine.ImageURL, message); err == nil {
			return nil
		} else {
			t.log.WarnObj("telegram photo send failed, falling back to text", "telegram_error", map[string]any{
				"notifier_id": t.id,
				"image_url":   evt.Machine.ImageURL,
				"error":       err.Error(),
			})
		}
	}

	return t.sendMessage(ctx, message)
}

// throttle spaces out consecutive sends by sendInterval.
func (t *telegramNotifier) throttle(ctx context.Context) error {
	if t.sendInterval <= 0 {
		return nil
	}

	t.mu.Lock()
	wait := t.sendInterval - time.Since(t.lastSend)
	t.lastSend = time.Now().Add(wait)
	t.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *telegramNotifier) sendPhoto(ctx context.Context, photoURL, caption string) error {
	return t.call(ctx, "sendPhoto", map[string]string{
		"chat_id":    t.chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": "HTML",
	})
}

func (t *telegramNotifier) sendMessage(ctx context.Context, text string) error {
	return t.call(ctx, "sendMessage", map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

func (t *telegramNotifier) call(ctx context.Context, method string, params map[string]string) error {
	url := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)

	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(params).
		Post(url)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return fmt.Errorf("telegram %s: decode response status %d: %w", method, resp.StatusCode(), err)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode(), apiResp.Description)
	}
	return nil
}

// formatMessage renders the HTML message body for an event.
func (t *telegramNotifier) formatMessage(evt Event) string {
	if evt.Kind == KindAlert {
		return fmt.Sprintf("⚠️ <b>%s</b>\n%s", html.EscapeString(evt.SearchLabel), html.EscapeString(evt.Message))
	}

	m := evt.Machine
	var b strings.Builder
	fmt.Fprintf(&b, "🚜 <b>%s</b>\n", html.EscapeString(evt.SearchLabel))
	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(m.Title))
	fmt.Fprintf(&b, "💰 Price: %s\n", html.EscapeString(valueOrNA(m.Price)))
	fmt.Fprintf(&b, "📅 Year: %s\n", html.EscapeString(valueOrNA(m.Year)))
	fmt.Fprintf(&b, "⏱ Hours: %s\n", html.EscapeString(valueOrNA(m.Hours)))
	fmt.Fprintf(&b, "📍 Location: %s\n\n", html.EscapeString(valueOrNA(m.Location)))
	fmt.Fprintf(&b, `<a href="%s">View listing</a>`, html.EscapeString(m.Link))
	return b.String()
}

func valueOrNA(s string) string {
	if strings.TrimSpace(s) == "" || s == domain.Unknown {
		return "N/A"
	}
	return s
}
