// Package social fetches public Discord invite metadata and Telegram
// profile pages for link risk scoring. Clients return raw upstream
// facts; all judgment lives in the scoring engine.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	userAgent             = "ScamCheck/1.0 (+support@scamcheck.app)"
	discordTimeout        = 15 * time.Second
	defaultDiscordBaseURL = "https://discord.com/api/v9"
)

// ErrInviteNotFound marks an invalid or expired Discord invite.
var ErrInviteNotFound = errors.New("social: invite not found")

// StatusError reports a non-success upstream status that is not a
// recognized condition.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("social: unexpected status %d", e.Code)
}

// InviteInfo holds the public counters of a Discord invite.
type InviteInfo struct {
	ApproximateMemberCount   int `json:"approximate_member_count"`
	ApproximatePresenceCount int `json:"approximate_presence_count"`
}

// DiscordClient resolves invite codes.
type DiscordClient interface {
	Invite(ctx context.Context, code string) (*InviteInfo, error)
}

// HTTPDiscord queries the public Discord invite API.
type HTTPDiscord struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPDiscord creates a client against the public API.
func NewHTTPDiscord() *HTTPDiscord {
	return &HTTPDiscord{
		BaseURL: defaultDiscordBaseURL,
		HTTP:    &http.Client{Timeout: discordTimeout},
	}
}

var _ DiscordClient = (*HTTPDiscord)(nil)

// Invite fetches invite metadata with member and presence counts.
// A 404 maps to ErrInviteNotFound; other non-200 statuses map to
// *StatusError.
func (c *HTTPDiscord) Invite(ctx context.Context, code string) (*InviteInfo, error) {
	u := fmt.Sprintf("%s/invites/%s?with_counts=true&with_expiration=true", c.BaseURL, code)
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

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrInviteNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var info InviteInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}
