package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/yourneighborhoodchef/servermon/internal/client"
)

const telegramAPI = "https://api.telegram.org"

type TelegramConfig struct {
	Token   string
	ChatID  string
	BaseURL string
	Timeout time.Duration
}

type Telegram struct {
	cfg    TelegramConfig
	client *client.ProxiedClient
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" || strings.TrimSpace(cfg.ChatID) == "" {
		return nil, fmt.Errorf("telegram: %w", ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = telegramAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c, err := client.CreateClient(cfg.Timeout, "")
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	return &Telegram{cfg: cfg, client: c}, nil
}

func (t *Telegram) Name() string { return "telegram" }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Deliver(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  t.cfg.ChatID,
		"text":                     message,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := strings.TrimRight(t.cfg.BaseURL, "/") + "/bot" + t.cfg.Token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}
	return parseTelegramResponse(resp.StatusCode, body)
}

func parseTelegramResponse(status int, body []byte) error {
	var r telegramResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("telegram status %d: decode response: %w", status, err)
	}
	if status != http.StatusOK || !r.OK {
		return fmt.Errorf("telegram status %d: %s", status, r.Description)
	}
	return nil
}
