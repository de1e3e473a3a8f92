package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	telegramTimeout        = 10 * time.Second
	defaultTelegramBaseURL = "https://t.me"

	// maxProfileBody caps how much of a t.me page we read for marker
	// scanning.
	maxProfileBody = 2 << 20
)

// ProfilePage is a fetched t.me page, status plus body text.
type ProfilePage struct {
	StatusCode int
	Body       string
}

// TelegramClient fetches public t.me profile pages.
type TelegramClient interface {
	ProfilePage(ctx context.Context, username string) (*ProfilePage, error)
}

// HTTPTelegram scrapes public t.me pages over HTTPS.
type HTTPTelegram struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPTelegram creates a client against t.me.
func NewHTTPTelegram() *HTTPTelegram {
	return &HTTPTelegram{
		BaseURL: defaultTelegramBaseURL,
		HTTP:    &http.Client{Timeout: telegramTimeout},
	}
}

var _ TelegramClient = (*HTTPTelegram)(nil)

// ProfilePage fetches the public page for a username. Non-2xx statuses
// are returned as pages, not errors; only transport failures error.
func (c *HTTPTelegram) ProfilePage(ctx context.Context, username string) (*ProfilePage, error) {
	u := fmt.Sprintf("%s/%s", c.BaseURL, username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody))
	if err != nil {
		return nil, err
	}
	return &ProfilePage{StatusCode: resp.StatusCode, Body: string(body)}, nil
}
