package gateway

import (
	"context"
	"time"
)

// PaymentStatus is the provider-agnostic charge status vocabulary. Every
// adapter maps its own wire statuses into these values; unknown values map to
// StatusPending so they never silently become a final state.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

// Canonical webhook event types.
const (
	EventPaymentPaid      = "payment.paid"
	EventPaymentExpired   = "payment.expired"
	EventPaymentCancelled = "payment.cancelled"
	EventPaymentRefunded  = "payment.refunded"
	EventPayoutCompleted  = "payout.completed"
	EventPayoutFailed     = "payout.failed"
	EventPayoutProcessing = "payout.processing"
)

type Customer struct {
	Name     string
	Email    string
	Document string
}

type ChargeRequest struct {
	Amount           int64
	ExternalID       string
	Description      string
	Customer         Customer
	ExpiresInMinutes int
	Metadata         map[string]string
}

type Charge struct {
	GatewayID  string
	QRCode     string
	QRCodeText string
	ExpiresAt  time.Time
	Status     PaymentStatus
}

type PaymentStatusResult struct {
	GatewayID  string
	Status     PaymentStatus
	PaidAt     *time.Time
	PaidAmount int64
}

type PayoutRequest struct {
	Amount            int64
	ExternalID        string
	PixKey            string
	PixKeyType        string
	RecipientName     string
	RecipientDocument string
	Description       string
}

type Payout struct {
	GatewayID             string
	Status                PayoutStatus
	EstimatedCompletionAt *time.Time
}

type PayoutStatusResult struct {
	GatewayID     string
	Status        PayoutStatus
	CompletedAt   *time.Time
	FailureReason string
}

// WebhookEvent is the normalized form of a provider notification. ExternalID
// carries the correlation id we sent at creation time, when the provider
// echoes it back; it is the fallback match key for rows whose gateway id was
// never recorded.
type WebhookEvent struct {
	Type       string
	GatewayID  string
	ExternalID string
	EventID    string
	Data       map[string]interface{}
	Timestamp  time.Time
}

// Adapter is the contract every PIX provider integration implements. Requests
// and responses use the canonical shapes above; each adapter owns its own wire
// DTOs and status lookup tables.
type Adapter interface {
	Name() string

	GeneratePixCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetPaymentStatus(ctx context.Context, gatewayID string) (*PaymentStatusResult, error)

	ExecutePayout(ctx context.Context, req PayoutRequest) (*Payout, error)
	GetPayoutStatus(ctx context.Context, gatewayID string) (*PayoutStatusResult, error)

	// ValidateWebhookSignature checks the provider HMAC over the raw body in
	// constant time. It returns false, never an error, when no secret is
	// configured so the caller rejects explicitly.
	ValidateWebhookSignature(rawBody []byte, signatureHeader string) bool

	// SignatureHeader names the HTTP header carrying the webhook signature.
	SignatureHeader() string

	ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error)
}
