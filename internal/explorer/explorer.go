// Package explorer queries Etherscan-family block explorers for EVM account
// activity and verified contract source.
//
// Transient upstream failures are retried with backoff, and a per-chain
// circuit breaker sheds load from explorers that keep failing. Missing API
// keys and exhausted retries surface as errors (account lookups) or degraded
// results (contract source); callers fold them into verdicts, they are
// never fatal.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/scamcheck/scamcheck/internal/circuitbreaker"
	"github.com/scamcheck/scamcheck/internal/retry"
)

// Errors returned by account lookups. Both mean "enrichment unavailable".
var (
	ErrNoAPIKey    = errors.New("explorer: API key not configured")
	ErrUnavailable = errors.New("explorer: upstream unavailable")
)

const (
	userAgent      = "ScamCheck/1.0 (+support@scamcheck.app)"
	requestTimeout = 15 * time.Second

	retryAttempts  = 3
	retryBaseDelay = 250 * time.Millisecond

	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// scanBases maps chain codes to explorer API endpoints.
var scanBases = map[string]string{
	"ETH":     "https://api.etherscan.io/api",
	"POLYGON": "https://api.polygonscan.com/api",
	"BSC":     "https://api.bscscan.com/api",
	"ARB":     "https://api.arbiscan.io/api",
	"OPT":     "https://api-optimistic.etherscan.io/api",
	"AVAX-C":  "https://api.snowtrace.io/api",
	"FTM":     "https://api.ftmscan.com/api",
	"CRO":     "https://api.cronoscan.com/api",
}

// chainAliases normalizes caller-supplied chain hints to table codes.
var chainAliases = map[string]string{
	"ETHEREUM": "ETH",
	"BINANCE":  "BSC",
	"MATIC":    "POLYGON",
	"ARBITRUM": "ARB",
	"OPTIMISM": "OPT",
}

// suspiciousCapabilities are source-text markers scanned in verified
// contract code. Presence is reported, not judged.
var suspiciousCapabilities = []string{
	"blacklist", "whitelist", "pause", "mint(", "setfee", "owner()", "transferownership",
}

// AccountInfo is the result of an account activity lookup.
type AccountInfo struct {
	BalanceWei    *big.Int
	BalanceNative float64
	TxCount       int
}

// SourceInfo is the result of a contract source verification lookup.
// It is always produced, even on upstream failure (see ErrorMsg/Note).
type SourceInfo struct {
	Verified  bool     `json:"verified"`
	Flags     []string `json:"flags"`
	Compiler  string   `json:"compiler,omitempty"`
	License   string   `json:"license,omitempty"`
	Address   string   `json:"address,omitempty"`
	ChainCode string   `json:"chain_code,omitempty"`
	Note      string   `json:"note,omitempty"`
	ErrorMsg  string   `json:"error,omitempty"`
}

// Client is the enrichment contract consumed by the scoring engine.
type Client interface {
	Account(ctx context.Context, chainCode, address string) (*AccountInfo, error)
	ContractSource(ctx context.Context, chainCode, address string) *SourceInfo
}

// HTTPClient talks to the public Etherscan-family HTTP APIs. The zero
// values mean single-attempt requests with no circuit breaking.
type HTTPClient struct {
	APIKey string
	HTTP   *http.Client

	// MaxAttempts bounds retries per request.
	MaxAttempts int

	// Breaker is keyed by normalized chain code.
	Breaker *circuitbreaker.Breaker

	// BaseOverride replaces the per-chain endpoint (tests).
	BaseOverride string
}

// NewHTTPClient creates a client with the default timeout, retry
// policy and breaker.
func NewHTTPClient(apiKey string) *HTTPClient {
	return &HTTPClient{
		APIKey:      apiKey,
		HTTP:        &http.Client{Timeout: requestTimeout},
		MaxAttempts: retryAttempts,
		Breaker:     circuitbreaker.New(breakerThreshold, breakerCooldown),
	}
}

var _ Client = (*HTTPClient)(nil)

// NormalizeChain maps a caller-supplied chain hint to a known code,
// defaulting to ETH.
func NormalizeChain(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if alias, ok := chainAliases[c]; ok {
		c = alias
	}
	if _, ok := scanBases[c]; !ok {
		return "ETH"
	}
	return c
}

func (c *HTTPClient) base(chainCode string) string {
	if c.BaseOverride != "" {
		return c.BaseOverride
	}
	return scanBases[NormalizeChain(chainCode)]
}

// Account fetches native balance and recent transaction count.
func (c *HTTPClient) Account(ctx context.Context, chainCode, address string) (*AccountInfo, error) {
	if c.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("explorer: not an EVM address: %q", address)
	}

	key := NormalizeChain(chainCode)
	base := c.base(key)

	var balResp struct {
		Result json.RawMessage `json:"result"`
	}
	q := url.Values{
		"module":  {"account"},
		"action":  {"balance"},
		"address": {address},
		"tag":     {"latest"},
		"apikey":  {c.APIKey},
	}
	if err := c.getJSON(ctx, key, base+"?"+q.Encode(), &balResp); err != nil {
		return nil, err
	}
	balanceWei := parseWei(balResp.Result)

	var txResp struct {
		Result json.RawMessage `json:"result"`
	}
	q = url.Values{
		"module":  {"account"},
		"action":  {"txlist"},
		"address": {address},
		"page":    {"1"},
		"offset":  {"1"},
		"sort":    {"desc"},
		"apikey":  {c.APIKey},
	}
	if err := c.getJSON(ctx, key, base+"?"+q.Encode(), &txResp); err != nil {
		return nil, err
	}

	// txlist result is a list on success and an error string otherwise.
	txCount := 0
	var txs []json.RawMessage
	if err := json.Unmarshal(txResp.Result, &txs); err == nil {
		txCount = len(txs)
	}

	return &AccountInfo{
		BalanceWei:    balanceWei,
		BalanceNative: weiToNative(balanceWei),
		TxCount:       txCount,
	}, nil
}

// ContractSource fetches the verified source record for a contract and
// scans it for capability flags. Upstream problems come back as a
// degraded SourceInfo, never an error.
func (c *HTTPClient) ContractSource(ctx context.Context, chainCode, address string) *SourceInfo {
	code := NormalizeChain(chainCode)
	info := &SourceInfo{Flags: []string{}, Address: address, ChainCode: code}

	if !common.IsHexAddress(address) {
		info.ErrorMsg = fmt.Sprintf("Invalid %s contract address. Must be 0x + 40 hex chars.", code)
		return info
	}
	if c.APIKey == "" {
		info.ErrorMsg = "ETHERSCAN_API_KEY missing"
		return info
	}

	var resp struct {
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	q := url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {address},
		"apikey":  {c.APIKey},
	}
	if err := c.getJSON(ctx, code, c.base(code)+"?"+q.Encode(), &resp); err != nil {
		info.ErrorMsg = fmt.Sprintf("Explorer request failed: %v", err)
		return info
	}

	// Some explorer errors arrive as a string result.
	var msg string
	if err := json.Unmarshal(resp.Result, &msg); err == nil {
		if msg == "" {
			msg = resp.Message
		}
		if strings.Contains(strings.ToLower(msg), "not verified") {
			info.Note = msg
		} else {
			info.ErrorMsg = msg
		}
		return info
	}

	var records []struct {
		SourceCode      string `json:"SourceCode"`
		CompilerVersion string `json:"CompilerVersion"`
		LicenseType     string `json:"LicenseType"`
	}
	if err := json.Unmarshal(resp.Result, &records); err != nil || len(records) == 0 {
		info.ErrorMsg = "No result from explorer"
		return info
	}

	rec := records[0]
	info.Verified = rec.SourceCode != ""
	info.Compiler = rec.CompilerVersion
	info.License = rec.LicenseType

	if info.Verified {
		lower := strings.ToLower(rec.SourceCode)
		for _, marker := range suspiciousCapabilities {
			if strings.Contains(lower, marker) {
				info.Flags = append(info.Flags, marker)
			}
		}
	} else {
		info.Note = "Contract source is not verified on explorer"
	}
	return info
}

// getJSON fetches one explorer endpoint, retrying transient failures
// and recording the outcome on the chain's circuit.
func (c *HTTPClient) getJSON(ctx context.Context, chainKey, rawURL string, out any) error {
	if c.Breaker != nil && !c.Breaker.Allow(chainKey) {
		return fmt.Errorf("%w: circuit open for %s", ErrUnavailable, chainKey)
	}

	err := retry.Do(ctx, c.MaxAttempts, retryBaseDelay, func() error {
		return c.fetchJSON(ctx, rawURL, out)
	})

	if c.Breaker != nil {
		if err != nil {
			c.Breaker.RecordFailure(chainKey)
		} else {
			c.Breaker.RecordSuccess(chainKey)
		}
	}
	return err
}

func (c *HTTPClient) fetchJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
		// Rate limits and server errors are worth retrying, other
		// statuses are not.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return err
		}
		return retry.Permanent(err)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("%w: bad JSON: %v", ErrUnavailable, err))
	}
	return nil
}

// parseWei tolerates both quoted decimal strings and malformed results;
// anything unparseable counts as zero, matching the degraded-not-fatal
// contract.
func parseWei(raw json.RawMessage) *big.Int {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return big.NewInt(0)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

func weiToNative(wei *big.Int) float64 {
	if wei == nil || wei.Sign() == 0 {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		new(big.Float).SetInt64(params.Ether),
	).Float64()
	return f
}
