package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/scamcheck/scamcheck/internal/explorer"
	"github.com/scamcheck/scamcheck/internal/logging"
	"github.com/scamcheck/scamcheck/internal/metrics"
	"github.com/scamcheck/scamcheck/internal/network"
)

// activityFloor is the minimum score for addresses with any observed
// on-chain activity.
const activityFloor = 60

// ScoreWallet classifies an address and produces a risk verdict.
// EVM addresses are enriched with explorer activity when a client is
// configured; enrichment failures degrade to a signal.
func (s *Service) ScoreWallet(ctx context.Context, address string) (*Verdict, error) {
	net, ok := network.Detect(address)
	if !ok {
		return nil, &InvalidInputError{Message: invalidAddressMessage}
	}

	score := baselineScore(address)
	var signals []string

	if net.IsEVM() && s.explorer != nil {
		info, err := s.explorer.Account(ctx, net.Code, address)
		switch {
		case errors.Is(err, explorer.ErrNoAPIKey):
			// Enrichment not configured, baseline stands.
			metrics.EnrichmentRequestsTotal.WithLabelValues("evm_explorer", "skipped").Inc()
		case err != nil:
			logging.L(ctx).Warn("explorer enrichment failed",
				"network", net.Code, "error", err)
			metrics.EnrichmentRequestsTotal.WithLabelValues("evm_explorer", "error").Inc()
			signals = append(signals, "EVM explorer check failed")
		default:
			metrics.EnrichmentRequestsTotal.WithLabelValues("evm_explorer", "ok").Inc()
			signals = append(signals,
				fmt.Sprintf("Balance: %.6f native", info.BalanceNative),
				fmt.Sprintf("Transactions: %d", info.TxCount),
			)
			if (info.BalanceNative > 0 || info.TxCount > 0) && score < activityFloor {
				score = activityFloor
			}
		}
	}

	label, summary, tips := walletLabel(score)
	if label != LabelRisk {
		signals = append([]string{"Detected network: " + net.Name}, signals...)
	} else if len(signals) == 0 {
		signals = []string{"Suspicious heuristics"}
	}

	return &Verdict{
		OK:      true,
		Address: address,
		Network: net.Name,
		Code:    net.Code,
		Score:   score,
		Label:   label,
		Color:   label.Color(),
		Summary: summary,
		Signals: signals,
		Tips:    tips,
	}, nil
}
