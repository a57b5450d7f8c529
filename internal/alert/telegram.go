// Package alert pushes refresh failures to an operator. The only shipped
// transport is a Telegram bot message; when no bot is configured the
// notifier degrades to a no-op so the refresh pipeline never has to care.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Notifier delivers an out-of-band message to an operator.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Telegram sends alerts through the Telegram bot API.
type Telegram struct {
	token  string
	chatID string
	apiURL string
	client *http.Client
}

// NewTelegram creates a Telegram notifier. With an empty token or chat ID
// the notifier is disabled and Notify becomes a no-op.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		apiURL: "https://api.telegram.org",
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether the notifier has a full bot configuration.
func (t *Telegram) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

// Notify sends the message to the configured chat. Disabled notifiers log
// at debug level and return nil.
func (t *Telegram) Notify(ctx context.Context, message string) error {
	if !t.Enabled() {
		slog.Debug("telegram alert skipped: bot token or chat id not set")
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    message,
	})
	if err != nil {
		return fmt.Errorf("alert: encoding message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alert: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert: sending telegram message: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alert: telegram API returned %s", resp.Status)
	}
	return nil
}
