// Package scoring turns wallet addresses and social links into risk
// verdicts. Scores are deterministic for a given input; enrichment
// from upstream services can only adjust, never replace, the baseline.
package scoring

import "crypto/sha256"

// Label is the human verdict bucket.
type Label string

const (
	LabelSafe    Label = "Safe"
	LabelCaution Label = "Caution"
	LabelRisk    Label = "Risk"
)

// Color returns the UI color conventionally paired with the label.
func (l Label) Color() string {
	switch l {
	case LabelSafe:
		return "green"
	case LabelCaution:
		return "yellow"
	default:
		return "red"
	}
}

// Verdict is the scored result for a wallet or link check.
type Verdict struct {
	OK       bool     `json:"ok"`
	Address  string   `json:"address,omitempty"`
	URL      string   `json:"url,omitempty"`
	Network  string   `json:"network,omitempty"`
	Code     string   `json:"code,omitempty"`
	Platform string   `json:"platform,omitempty"`
	Type     string   `json:"type,omitempty"`
	Score    int      `json:"score"`
	Label    Label    `json:"label"`
	Color    string   `json:"color"`
	Summary  string   `json:"summary"`
	Signals  []string `json:"signals"`
	Tips     []string `json:"tips"`
}

// baselineScore maps an identifier to a stable 0..100 score from the
// first byte of its SHA-256 digest.
func baselineScore(identifier string) int {
	h := sha256.Sum256([]byte(identifier))
	return int(float64(h[0])/255*100 + 0.5)
}

// walletLabel buckets wallet scores. High scores are reassuring here.
func walletLabel(score int) (Label, string, []string) {
	switch {
	case score >= 80:
		return LabelSafe,
			"High reputation. No obvious scam patterns detected.",
			[]string{"Double-check recipient", "Keep seed phrase offline"}
	case score >= 50:
		return LabelCaution,
			"Some risk factors. Consider a small test transfer.",
			[]string{"Send a small test first", "Cross-check on other sources"}
	default:
		return LabelRisk,
			"High probability of scam. Avoid large transfers.",
			[]string{"Do not send large amounts", "Ask for an alternative address"}
	}
}

// linkLabel buckets link scores. High scores are alarming here, the
// inverse of the wallet scheme.
func linkLabel(score int) (Label, string) {
	switch {
	case score >= 70:
		return LabelRisk, "High probability of invalid or unsafe link."
	case score >= 40:
		return LabelCaution, "Neutral risk level."
	default:
		return LabelSafe, "No obvious red flags found."
	}
}
