// Package token screens ERC-20 style tokens against public market and
// honeypot intelligence feeds. Both upstreams are keyless and rate
// limited, so results degrade to partial reports instead of failing.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	userAgent      = "ScamCheck/1.0 (+support@scamcheck.app)"
	requestTimeout = 15 * time.Second

	defaultDexScreenerBaseURL = "https://api.dexscreener.com"
	defaultHoneypotBaseURL    = "https://api.honeypot.is"
)

// PairInfo describes the deepest trading pair found for a token.
type PairInfo struct {
	Dex          string  `json:"dex"`
	BaseSymbol   string  `json:"base_symbol"`
	QuoteSymbol  string  `json:"quote_symbol"`
	PriceUSD     string  `json:"price_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	FDV          float64 `json:"fdv"`
	URL          string  `json:"url"`
}

// HoneypotInfo is the simulation result for a token.
type HoneypotInfo struct {
	IsHoneypot bool    `json:"is_honeypot"`
	BuyTax     float64 `json:"buy_tax"`
	SellTax    float64 `json:"sell_tax"`
}

// Report aggregates screening results. A nil section with a note means
// that upstream could not answer.
type Report struct {
	Address      string        `json:"address"`
	Chain        string        `json:"chain"`
	Pair         *PairInfo     `json:"pair,omitempty"`
	PairNote     string        `json:"pair_note,omitempty"`
	Honeypot     *HoneypotInfo `json:"honeypot,omitempty"`
	HoneypotNote string        `json:"honeypot_note,omitempty"`
}

// Screener produces token screening reports.
type Screener interface {
	Screen(ctx context.Context, chain, address string) *Report
}

// HTTPScreener queries DexScreener and honeypot.is.
type HTTPScreener struct {
	DexScreenerBaseURL string
	HoneypotBaseURL    string
	HTTP               *http.Client
}

// NewHTTPScreener creates a screener against the public endpoints.
func NewHTTPScreener() *HTTPScreener {
	return &HTTPScreener{
		DexScreenerBaseURL: defaultDexScreenerBaseURL,
		HoneypotBaseURL:    defaultHoneypotBaseURL,
		HTTP:               &http.Client{Timeout: requestTimeout},
	}
}

var _ Screener = (*HTTPScreener)(nil)

// Screen looks up market depth and honeypot simulation for a token.
// Each upstream degrades independently.
func (s *HTTPScreener) Screen(ctx context.Context, chain, address string) *Report {
	report := &Report{Address: address, Chain: chain}

	pair, err := s.bestPair(ctx, address)
	if err != nil {
		report.PairNote = fmt.Sprintf("DexScreener lookup failed: %v", err)
	} else if pair == nil {
		report.PairNote = "No trading pairs found"
	} else {
		report.Pair = pair
	}

	hp, err := s.honeypot(ctx, chain, address)
	if err != nil {
		report.HoneypotNote = fmt.Sprintf("Honeypot check failed: %v", err)
	} else {
		report.Honeypot = hp
	}
	return report
}

// bestPair picks the pair with the deepest USD liquidity.
func (s *HTTPScreener) bestPair(ctx context.Context, address string) (*PairInfo, error) {
	var resp struct {
		Pairs []struct {
			DexID     string `json:"dexId"`
			URL       string `json:"url"`
			PriceUSD  string `json:"priceUsd"`
			BaseToken struct {
				Symbol string `json:"symbol"`
			} `json:"baseToken"`
			QuoteToken struct {
				Symbol string `json:"symbol"`
			} `json:"quoteToken"`
			Liquidity struct {
				USD float64 `json:"usd"`
			} `json:"liquidity"`
			FDV float64 `json:"fdv"`
		} `json:"pairs"`
	}

	u := s.DexScreenerBaseURL + "/latest/dex/tokens/" + url.PathEscape(address)
	if err := s.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Pairs) == 0 {
		return nil, nil
	}

	best := resp.Pairs[0]
	for _, p := range resp.Pairs[1:] {
		if p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return &PairInfo{
		Dex:          best.DexID,
		BaseSymbol:   best.BaseToken.Symbol,
		QuoteSymbol:  best.QuoteToken.Symbol,
		PriceUSD:     best.PriceUSD,
		LiquidityUSD: best.Liquidity.USD,
		FDV:          best.FDV,
		URL:          best.URL,
	}, nil
}

func (s *HTTPScreener) honeypot(ctx context.Context, chain, address string) (*HoneypotInfo, error) {
	var resp struct {
		HoneypotResult struct {
			IsHoneypot bool `json:"isHoneypot"`
		} `json:"honeypotResult"`
		SimulationResult struct {
			BuyTax  float64 `json:"buyTax"`
			SellTax float64 `json:"sellTax"`
		} `json:"simulationResult"`
	}

	q := url.Values{"address": {address}, "chain": {chain}}
	u := s.HoneypotBaseURL + "/v2/IsHoneypot?" + q.Encode()
	if err := s.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return &HoneypotInfo{
		IsHoneypot: resp.HoneypotResult.IsHoneypot,
		BuyTax:     resp.SimulationResult.BuyTax,
		SellTax:    resp.SimulationResult.SellTax,
	}, nil
}

func (s *HTTPScreener) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %s", strconv.Itoa(resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
