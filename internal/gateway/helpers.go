package gateway

import (
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"strings"
	"unicode"
)

// NormalizeDocument strips formatting from a CPF/CNPJ so adapters always send
// bare digits to the provider.
func NormalizeDocument(document string) string {
	var b strings.Builder
	for _, r := range document {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidDocument reports whether a normalized document is a CPF (11 digits)
// or CNPJ (14 digits).
func IsValidDocument(document string) bool {
	n := len(NormalizeDocument(document))
	return n == 11 || n == 14
}

// FormatAmount renders cents as a decimal string ("29.90") for providers that
// take decimal values on the wire.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// ValidateChargeRequest applies the shared request discipline before any
// provider call.
func ValidateChargeRequest(provider string, req ChargeRequest) error {
	if req.Amount <= 0 {
		return NewInvalidRequestError(provider, "amount must be positive")
	}
	if req.ExternalID == "" {
		return NewInvalidRequestError(provider, "external id is required")
	}
	if !IsValidDocument(req.Customer.Document) {
		return NewInvalidRequestError(provider, "customer document must be a CPF (11 digits) or CNPJ (14 digits)")
	}
	return nil
}

func ValidatePayoutRequest(provider string, req PayoutRequest) error {
	if req.Amount <= 0 {
		return NewInvalidRequestError(provider, "amount must be positive")
	}
	if req.ExternalID == "" {
		return NewInvalidRequestError(provider, "external id is required")
	}
	if req.PixKey == "" {
		return NewInvalidRequestError(provider, "pix key is required")
	}
	if !IsValidDocument(req.RecipientDocument) {
		return NewInvalidRequestError(provider, "recipient document must be a CPF (11 digits) or CNPJ (14 digits)")
	}
	return nil
}

// mapStatus resolves a provider status through the adapter's lookup table.
// Unknown statuses must never become a final state; both canonical
// vocabularies default to "pending".
func mapStatus[T ~string](table map[string]T, raw string) T {
	if mapped, ok := table[raw]; ok {
		return mapped
	}
	return T("pending")
}

// decodeWebhookPayload unmarshals a raw webhook body into the adapter's wire
// shape, failing with the canonical INVALID_REQUEST code on malformed input.
func decodeWebhookPayload[T any](provider string, rawBody []byte) (*T, error) {
	var payload T
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, NewInvalidRequestError(provider, fmt.Sprintf("unparseable webhook payload: %v", err))
	}
	return &payload, nil
}

// ValidHMACHex verifies a hex-encoded HMAC digest over the raw body using
// constant-time comparison. An empty secret always fails so a misconfigured
// provider rejects every webhook instead of accepting them.
func ValidHMACHex(newHash func() hash.Hash, secret string, rawBody []byte, signatureHex string) bool {
	if secret == "" || signatureHex == "" {
		return false
	}

	expected, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil {
		return false
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), expected)
}
