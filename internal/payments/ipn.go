package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SignatureHeader carries the IPN HMAC.
const SignatureHeader = "x-nowpayments-sig"

// IPNEvent is the subset of a NOWPayments callback the service acts on.
type IPNEvent struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
}

// Settled reports whether the payment status releases the purchase.
func (e *IPNEvent) Settled() bool {
	return e.PaymentStatus == "finished" || e.PaymentStatus == "confirmed"
}

// VerifySignature checks the HMAC-SHA512 hex signature over the raw
// callback body.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// ParseIPN decodes a verified callback body.
func ParseIPN(body []byte) (*IPNEvent, error) {
	var event IPNEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("payments: bad IPN body: %w", err)
	}
	if event.PaymentID.String() == "" {
		return nil, fmt.Errorf("payments: IPN missing payment_id")
	}
	return &event, nil
}

// IdentityFromOrderID recovers the identity embedded by NewOrderID.
// The identity itself may contain underscores, so the timestamp and
// nonce are stripped from the right.
func IdentityFromOrderID(orderID string) (string, bool) {
	if !strings.HasPrefix(orderID, orderIDPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(orderID, orderIDPrefix)

	for i := 0; i < 2; i++ {
		idx := strings.LastIndex(rest, "_")
		if idx <= 0 {
			return "", false
		}
		rest = rest[:idx]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
