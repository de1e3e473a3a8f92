// Package network classifies wallet addresses into blockchain networks.
//
// Classification runs against a fixed, ordered table of address-shape
// patterns; the first match wins. All EVM chains share one 0x pattern, so
// the table alone cannot distinguish Ethereum from, say, Polygon; callers
// that know the chain pass the code through to enrichment instead.
package network

import (
	"regexp"
	"strings"
)

// Descriptor identifies one supported network.
type Descriptor struct {
	Name string
	Code string

	pattern *regexp.Regexp
}

// IsEVM reports whether the network belongs to the EVM family
// (0x-addressed chains served by Etherscan-style explorers).
func (d Descriptor) IsEVM() bool {
	_, ok := evmCodes[d.Code]
	return ok
}

var evmCodes = map[string]struct{}{
	"ETH": {}, "BSC": {}, "POLYGON": {}, "ARB": {},
	"OPT": {}, "AVAX-C": {}, "FTM": {}, "CRO": {},
}

func entry(name, code, pattern string) Descriptor {
	return Descriptor{Name: name, Code: code, pattern: regexp.MustCompile(pattern)}
}

// table is built once at process start and never mutated.
// Order matters: e.g. a legacy "3..." Litecoin address also matches the
// Bitcoin pattern and is reported as BTC because BTC comes first.
var table = []Descriptor{
	// BTC family
	entry("Bitcoin", "BTC", `^(bc1[ac-hj-np-z02-9]{11,71}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})$`),
	entry("Litecoin", "LTC", `^(ltc1[ac-hj-np-z02-9]{11,71}|[LM3][a-km-zA-HJ-NP-Z1-9]{26,33})$`),
	entry("Bitcoin Cash", "BCH", `^(bitcoincash:)?(q|p)[0-9a-z]{41}$`),
	entry("Dogecoin", "DOGE", `^[D9A][a-km-zA-HJ-NP-Z1-9]{25,34}$`),

	// EVM family (shared 0x shape, disambiguated only by caller hint)
	entry("Ethereum (Mainnet)", "ETH", `^0x[a-fA-F0-9]{40}$`),
	entry("BNB Smart Chain", "BSC", `^0x[a-fA-F0-9]{40}$`),
	entry("Polygon (MATIC)", "POLYGON", `^0x[a-fA-F0-9]{40}$`),
	entry("Arbitrum One", "ARB", `^0x[a-fA-F0-9]{40}$`),
	entry("Optimism", "OPT", `^0x[a-fA-F0-9]{40}$`),
	entry("Avalanche C-Chain", "AVAX-C", `^0x[a-fA-F0-9]{40}$`),
	entry("Fantom", "FTM", `^0x[a-fA-F0-9]{40}$`),
	entry("Cronos", "CRO", `^0x[a-fA-F0-9]{40}$`),

	// Non-EVM
	entry("TRON (TRC-20)", "TRX", `^T[1-9A-HJ-NP-Za-km-z]{33}$`),
	entry("Solana", "SOL", `^[1-9A-HJ-NP-Za-km-z]{32,44}$`),
	entry("XRP (Ripple)", "XRP", `^r[1-9A-HJ-NP-Za-km-z]{24,34}$`),
	entry("BNB Beacon (BEP-2)", "BNB", `^(bnb1)[0-9a-z]{38}$`),
	entry("Cosmos (ATOM)", "ATOM", `^(cosmos1)[0-9a-z]{38}$`),
	entry("Cardano", "ADA", `^(addr1)[0-9a-z]{20,}$`),
	entry("Polkadot", "DOT", `^(1|1x)[0-9A-HJ-NP-Za-km-z]{47,48}$`),
	entry("Near Protocol", "NEAR", `^[a-z0-9_\-\.]{2,64}\.near$`),
	entry("Tezos", "XTZ", `^(tz1|tz2|tz3|KT1)[1-9A-HJ-NP-Za-km-z]{33}$`),
	entry("TON", "TON", `^(EQ|UQ)[A-Za-z0-9\-_]{46,48}$`),
}

// SupportedSummary is the human-readable list shown when an address
// matches no pattern.
const SupportedSummary = "BTC/LTC/BCH/DOGE, EVM (0x…), TRON, Solana, XRP, BNB Beacon, Cosmos, Cardano, Polkadot, NEAR, Tezos, TON"

// Detect returns the first network whose pattern matches the full trimmed
// identifier. The second return is false when nothing matches.
func Detect(identifier string) (Descriptor, bool) {
	addr := strings.TrimSpace(identifier)
	if addr == "" {
		return Descriptor{}, false
	}
	for _, d := range table {
		if d.pattern.MatchString(addr) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Supported returns the network table in classification order.
func Supported() []Descriptor {
	out := make([]Descriptor, len(table))
	copy(out, table)
	return out
}
