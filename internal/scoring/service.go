package scoring

import (
	"log/slog"

	"github.com/scamcheck/scamcheck/internal/explorer"
	"github.com/scamcheck/scamcheck/internal/social"
)

// Messages returned for unrecognized inputs.
const (
	invalidAddressMessage = "Invalid address. Supported: BTC/LTC/BCH/DOGE, EVM (0x…), TRON, Solana, XRP, BNB Beacon, Cosmos, Cardano, Polkadot, NEAR, Tezos, TON."
	invalidLinkMessage    = "Provide a valid Discord or Telegram link (discord.gg/<code>, t.me/<username> or t.me/+invite)."
)

// InvalidInputError reports an identifier that matched no supported
// format. Handlers map it to a 400 response.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

// Service scores wallet addresses and social links.
type Service struct {
	explorer explorer.Client
	discord  social.DiscordClient
	telegram social.TelegramClient
	logger   *slog.Logger
}

// NewService wires the scoring engine. Any client may be nil; the
// corresponding enrichment is skipped.
func NewService(exp explorer.Client, dc social.DiscordClient, tg social.TelegramClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{explorer: exp, discord: dc, telegram: tg, logger: logger}
}
