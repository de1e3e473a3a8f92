package scoring

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/scamcheck/scamcheck/internal/logging"
	"github.com/scamcheck/scamcheck/internal/metrics"
	"github.com/scamcheck/scamcheck/internal/social"
)

var (
	dcInviteRe = regexp.MustCompile(`(?:https?://)?(?:discord\.gg|discord\.com/invite)/([A-Za-z0-9\-]+)`)
	tgJoinRe   = regexp.MustCompile(`(?:https?://)?(?:t\.me|telegram\.me)/(?:\+|joinchat/)([A-Za-z0-9_\-]{6,})`)
	tgUserRe   = regexp.MustCompile(`(?:https?://)?(?:t\.me|telegram\.me)/([A-Za-z0-9_]{3,})$`)
)

// missingPageMarkers indicate a t.me page for a nonexistent username.
var missingPageMarkers = []string{"was not found", "page not found", "not found"}

// chatPageMarkers indicate a t.me page backing a channel or group
// rather than a personal account.
var chatPageMarkers = []string{"tgme_channel_history", "tgme_channel_info", "join channel", "join group"}

// ScoreLink classifies a Discord or Telegram link and produces a risk
// verdict. Unrecognized links return an InvalidInputError.
func (s *Service) ScoreLink(ctx context.Context, rawURL string) (*Verdict, error) {
	link := strings.TrimSpace(rawURL)

	if m := dcInviteRe.FindStringSubmatch(link); m != nil {
		return s.scoreDiscord(ctx, link, m[1]), nil
	}
	if tgJoinRe.MatchString(link) {
		return telegramInviteVerdict(link), nil
	}
	if m := tgUserRe.FindStringSubmatch(link); m != nil {
		return s.scoreTelegramUser(ctx, link, m[1]), nil
	}
	return nil, &InvalidInputError{Message: invalidLinkMessage}
}

func (s *Service) scoreDiscord(ctx context.Context, link, code string) *Verdict {
	signals := []string{"Detected platform: Discord"}

	var (
		score           int
		summaryOverride string
		tips            []string
	)

	var (
		info *social.InviteInfo
		err  error
	)
	if s.discord != nil {
		info, err = s.discord.Invite(ctx, code)
	} else {
		err = errors.New("discord client not configured")
	}
	var statusErr *social.StatusError
	switch {
	case errors.Is(err, social.ErrInviteNotFound):
		metrics.EnrichmentRequestsTotal.WithLabelValues("discord", "ok").Inc()
		score = 85
		summaryOverride = "Discord invite is invalid or expired."
		signals = append(signals, "Discord API: invite not found (404)")
		tips = []string{"Ask admins for a fresh invite", "Check official site/socials for links"}
	case errors.As(err, &statusErr):
		metrics.EnrichmentRequestsTotal.WithLabelValues("discord", "error").Inc()
		score = 55
		summaryOverride = fmt.Sprintf("Discord API returned %d", statusErr.Code)
		tips = []string{"Try again later"}
	case err != nil:
		logging.L(ctx).Warn("discord invite lookup failed", "error", err)
		metrics.EnrichmentRequestsTotal.WithLabelValues("discord", "error").Inc()
		score = 55
		summaryOverride = "Discord API unavailable"
		tips = []string{"Try again later"}
	default:
		metrics.EnrichmentRequestsTotal.WithLabelValues("discord", "ok").Inc()
		members := info.ApproximateMemberCount
		switch {
		case members >= 100:
			score = 50
		case members < 10:
			score = 75
		default:
			score = 55
		}
		signals = append(signals, fmt.Sprintf("Members ~ %d, Online ~ %d", members, info.ApproximatePresenceCount))
		tips = []string{"Check pinned rules and roles", "Do not DM unknown users"}
	}

	label, summary := linkLabel(score)
	if summaryOverride != "" {
		summary = summaryOverride
	}
	return &Verdict{
		OK:       true,
		URL:      link,
		Platform: "discord",
		Score:    score,
		Label:    label,
		Color:    label.Color(),
		Summary:  summary,
		Signals:  signals,
		Tips:     tips,
	}
}

// telegramInviteVerdict handles +hash and joinchat links. The target
// cannot be inspected without joining, so the verdict is static.
func telegramInviteVerdict(link string) *Verdict {
	score := 50
	label, _ := linkLabel(score)
	return &Verdict{
		OK:       true,
		URL:      link,
		Platform: "telegram",
		Type:     "invite",
		Score:    score,
		Label:    label,
		Color:    label.Color(),
		Summary:  "Group/Channel (invite)",
		Signals:  []string{"Detected platform: Telegram", "Invite link pattern (+/joinchat)"},
		Tips:     []string{"Open in Telegram app and verify admins"},
	}
}

func (s *Service) scoreTelegramUser(ctx context.Context, link, username string) *Verdict {
	signals := []string{"Detected platform: Telegram"}

	var (
		score   int
		kind    string
		summary string
		tips    []string
	)

	var (
		page *social.ProfilePage
		err  error
	)
	if s.telegram != nil {
		page, err = s.telegram.ProfilePage(ctx, username)
	} else {
		err = errors.New("telegram client not configured")
	}
	if err == nil {
		metrics.EnrichmentRequestsTotal.WithLabelValues("telegram", "ok").Inc()
	}
	switch {
	case err != nil:
		logging.L(ctx).Warn("telegram profile fetch failed", "username", username, "error", err)
		metrics.EnrichmentRequestsTotal.WithLabelValues("telegram", "error").Inc()
		score, kind, summary = 45, "user", "Personal account"
		signals = append(signals, "Network error - fallback used")
		tips = []string{"Open in Telegram app to verify profile"}
	case page.StatusCode == 404 || page.StatusCode == 410 || containsAny(strings.ToLower(page.Body), missingPageMarkers):
		score, kind, summary = 85, "user_or_chat_missing", "User not found"
		signals = append(signals, fmt.Sprintf("Username @%s not found on t.me", username))
		tips = []string{"Check spelling or share a correct link"}
	case containsAny(strings.ToLower(page.Body), chatPageMarkers):
		score, kind, summary = 50, "chat", "Group/Channel"
		signals = append(signals, "Channel/group markers on page")
		tips = []string{"Open in Telegram app and verify admins"}
	default:
		score, kind, summary = 45, "user", "Personal account"
		signals = append(signals, "Username page reachable - treated as personal account")
		tips = []string{"Open in Telegram app to verify profile"}
	}

	label, _ := linkLabel(score)
	return &Verdict{
		OK:       true,
		URL:      link,
		Platform: "telegram",
		Type:     kind,
		Score:    score,
		Label:    label,
		Color:    label.Color(),
		Summary:  summary,
		Signals:  signals,
		Tips:     tips,
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
