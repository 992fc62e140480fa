package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerificationToken is the settlement verdict handed to the caller once a
// payment hash is considered settled. An empty Preimage marks the trusted
// path: the wallet asserted settlement without cryptographic proof.
type VerificationToken struct {
	PaymentHash string `json:"payment_hash"`
	Preimage    string `json:"preimage,omitempty"`
	SettledAt   int64  `json:"settled_at"`
}

// Proved reports whether the token carries a verified proof of payment.
func (t VerificationToken) Proved() bool { return t.Preimage != "" }

// NewProvedToken builds a token after checking that the preimage hashes to
// the payment hash. This is the only way to obtain a token with a non-empty
// Preimage field.
func NewProvedToken(paymentHash, preimage string, settledAt int64) (VerificationToken, error) {
	if !VerifyPreimage(preimage, paymentHash) {
		return VerificationToken{}, E(ErrVerification, "preimage does not hash to payment hash")
	}
	return VerificationToken{
		PaymentHash: strings.ToLower(paymentHash),
		Preimage:    strings.ToLower(preimage),
		SettledAt:   settledAt,
	}, nil
}

// NewTrustedToken builds a token from the wallet's bare settlement assertion.
// Deliberately a separate constructor so the weaker confidence level stays a
// visible, distinct code path.
func NewTrustedToken(paymentHash string, settledAt int64) VerificationToken {
	return VerificationToken{PaymentHash: strings.ToLower(paymentHash), SettledAt: settledAt}
}

// VerifyPreimage reports whether SHA-256(preimage) equals paymentHash.
// Both values are hex, compared case-insensitively.
func VerifyPreimage(preimage, paymentHash string) bool {
	raw, err := hex.DecodeString(strings.ToLower(preimage))
	if err != nil || len(raw) == 0 {
		return false
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]) == strings.ToLower(paymentHash)
}

// ZeroPreimage reports whether the preimage is absent or the degenerate
// all-zero value some wallet services return for unsettled invoices.
func ZeroPreimage(preimage string) bool {
	if preimage == "" {
		return true
	}
	for _, c := range preimage {
		if c != '0' {
			return false
		}
	}
	return true
}
