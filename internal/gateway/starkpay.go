package gateway

import (
	"context"
	"crypto/sha512"
	"fmt"
	"log/slog"
	"time"
)

const starkPaySignatureHeader = "x-starkpay-signature"

var starkPayChargeStatuses = map[string]PaymentStatus{
	"created":  PaymentStatusPending,
	"paid":     PaymentStatusPaid,
	"overdue":  PaymentStatusExpired,
	"voided":   PaymentStatusCancelled,
	"reversed": PaymentStatusRefunded,
}

var starkPayTransferStatuses = map[string]PayoutStatus{
	"created":    PayoutStatusPending,
	"processing": PayoutStatusProcessing,
	"success":    PayoutStatusCompleted,
	"failed":     PayoutStatusFailed,
}

// StarkPay webhooks carry a (subscription, log type) pair instead of a flat
// event name.
var starkPayEvents = map[string]string{
	"charge/paid":         EventPaymentPaid,
	"charge/overdue":      EventPaymentExpired,
	"charge/voided":       EventPaymentCancelled,
	"charge/reversed":     EventPaymentRefunded,
	"transfer/success":    EventPayoutCompleted,
	"transfer/failed":     EventPayoutFailed,
	"transfer/processing": EventPayoutProcessing,
}

type StarkPayConfig struct {
	APIURL        string
	APIKey        string
	WebhookSecret string
}

type StarkPayAdapter struct {
	client        *apiClient
	webhookSecret string
	logger        *slog.Logger
}

func NewStarkPayAdapter(cfg StarkPayConfig, logger *slog.Logger) *StarkPayAdapter {
	return &StarkPayAdapter{
		client: newAPIClient("starkpay", cfg.APIURL, map[string]string{
			"X-Api-Key": cfg.APIKey,
		}),
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

func (a *StarkPayAdapter) Name() string {
	return "starkpay"
}

func (a *StarkPayAdapter) SignatureHeader() string {
	return starkPaySignatureHeader
}

type starkPayChargePayload struct {
	Amount      string            `json:"amount"`
	ExternalRef string            `json:"externalRef"`
	Description string            `json:"description,omitempty"`
	DueSeconds  int               `json:"dueSeconds"`
	Payer       starkPayPayer     `json:"payer"`
	Tags        map[string]string `json:"tags,omitempty"`
}

type starkPayPayer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"`
}

type starkPayCharge struct {
	ID          string `json:"id"`
	ExternalRef string `json:"externalRef"`
	Status      string `json:"status"`
	BRCode      string `json:"brCode"`
	PngData     string `json:"pngData"`
	DueAt       string `json:"dueAt"`
	PaidAt      string `json:"paidAt"`
	AmountDue   string `json:"amountDue"`
	AmountPd    int64  `json:"amountPaidCents"`
}

func (a *StarkPayAdapter) GeneratePixCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := ValidateChargeRequest(a.Name(), req); err != nil {
		return nil, err
	}

	// StarkPay takes decimal amounts on the wire.
	payload := starkPayChargePayload{
		Amount:      FormatAmount(req.Amount),
		ExternalRef: req.ExternalID,
		Description: req.Description,
		DueSeconds:  req.ExpiresInMinutes * 60,
		Payer: starkPayPayer{
			Name:     req.Customer.Name,
			Email:    req.Customer.Email,
			Document: NormalizeDocument(req.Customer.Document),
		},
		Tags: req.Metadata,
	}

	var resp starkPayCharge
	if err := a.client.do(ctx, "POST", "/v2/charges", payload, &resp); err != nil {
		a.logger.Error("starkpay: charge creation failed", "external_ref", req.ExternalID, "error", err)
		return nil, err
	}

	dueAt, _ := time.Parse(time.RFC3339, resp.DueAt)

	return &Charge{
		GatewayID:  resp.ID,
		QRCode:     resp.PngData,
		QRCodeText: resp.BRCode,
		ExpiresAt:  dueAt,
		Status:     mapStatus(starkPayChargeStatuses, resp.Status),
	}, nil
}

func (a *StarkPayAdapter) GetPaymentStatus(ctx context.Context, gatewayID string) (*PaymentStatusResult, error) {
	var resp starkPayCharge
	if err := a.client.do(ctx, "GET", "/v2/charges/"+gatewayID, nil, &resp); err != nil {
		return nil, err
	}

	result := &PaymentStatusResult{
		GatewayID:  resp.ID,
		Status:     mapStatus(starkPayChargeStatuses, resp.Status),
		PaidAmount: resp.AmountPd,
	}
	if paidAt, err := time.Parse(time.RFC3339, resp.PaidAt); err == nil {
		result.PaidAt = &paidAt
	}
	return result, nil
}

type starkPayTransferPayload struct {
	Amount      string `json:"amount"`
	ExternalRef string `json:"externalRef"`
	PixKey      string `json:"pixKey"`
	PixKeyType  string `json:"pixKeyType"`
	HolderName  string `json:"holderName"`
	HolderTaxID string `json:"holderTaxId"`
	Description string `json:"description,omitempty"`
}

type starkPayTransfer struct {
	ID            string `json:"id"`
	ExternalRef   string `json:"externalRef"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason"`
	SettledAt     string `json:"settledAt"`
	EstimatedAt   string `json:"estimatedAt"`
}

func (a *StarkPayAdapter) ExecutePayout(ctx context.Context, req PayoutRequest) (*Payout, error) {
	if err := ValidatePayoutRequest(a.Name(), req); err != nil {
		return nil, err
	}

	payload := starkPayTransferPayload{
		Amount:      FormatAmount(req.Amount),
		ExternalRef: req.ExternalID,
		PixKey:      req.PixKey,
		PixKeyType:  req.PixKeyType,
		HolderName:  req.RecipientName,
		HolderTaxID: NormalizeDocument(req.RecipientDocument),
		Description: req.Description,
	}

	var resp starkPayTransfer
	if err := a.client.do(ctx, "POST", "/v2/transfers", payload, &resp); err != nil {
		a.logger.Error("starkpay: payout execution failed", "external_ref", req.ExternalID, "error", err)
		return nil, err
	}

	result := &Payout{
		GatewayID: resp.ID,
		Status:    mapStatus(starkPayTransferStatuses, resp.Status),
	}
	if estimatedAt, err := time.Parse(time.RFC3339, resp.EstimatedAt); err == nil {
		result.EstimatedCompletionAt = &estimatedAt
	}
	return result, nil
}

func (a *StarkPayAdapter) GetPayoutStatus(ctx context.Context, gatewayID string) (*PayoutStatusResult, error) {
	var resp starkPayTransfer
	if err := a.client.do(ctx, "GET", "/v2/transfers/"+gatewayID, nil, &resp); err != nil {
		return nil, err
	}

	result := &PayoutStatusResult{
		GatewayID:     resp.ID,
		Status:        mapStatus(starkPayTransferStatuses, resp.Status),
		FailureReason: resp.FailureReason,
	}
	if settledAt, err := time.Parse(time.RFC3339, resp.SettledAt); err == nil {
		result.CompletedAt = &settledAt
	}
	return result, nil
}

func (a *StarkPayAdapter) ValidateWebhookSignature(rawBody []byte, signatureHeader string) bool {
	return ValidHMACHex(sha512.New, a.webhookSecret, rawBody, signatureHeader)
}

type starkPayWebhookPayload struct {
	Event struct {
		ID           string `json:"id"`
		Created      string `json:"created"`
		Subscription string `json:"subscription"`
		Log          struct {
			Type     string           `json:"type"`
			Charge   starkPayCharge   `json:"charge"`
			Transfer starkPayTransfer `json:"transfer"`
		} `json:"log"`
	} `json:"event"`
}

func (a *StarkPayAdapter) ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	payload, err := decodeWebhookPayload[starkPayWebhookPayload](a.Name(), rawBody)
	if err != nil {
		return nil, err
	}

	evt := payload.Event
	eventType, ok := starkPayEvents[evt.Subscription+"/"+evt.Log.Type]
	if !ok {
		return nil, NewInvalidRequestError(a.Name(), fmt.Sprintf("unsupported event %s/%s", evt.Subscription, evt.Log.Type))
	}
	if evt.ID == "" {
		return nil, NewInvalidRequestError(a.Name(), "missing event id")
	}

	gatewayID := evt.Log.Charge.ID
	externalID := evt.Log.Charge.ExternalRef
	if evt.Subscription == "transfer" {
		gatewayID = evt.Log.Transfer.ID
		externalID = evt.Log.Transfer.ExternalRef
	}
	if gatewayID == "" {
		return nil, NewInvalidRequestError(a.Name(), "missing charge or transfer id")
	}

	timestamp, _ := time.Parse(time.RFC3339, evt.Created)

	return &WebhookEvent{
		Type:       eventType,
		GatewayID:  gatewayID,
		ExternalID: externalID,
		EventID:    evt.ID,
		Data: map[string]interface{}{
			"subscription":   evt.Subscription,
			"log_type":       evt.Log.Type,
			"failure_reason": evt.Log.Transfer.FailureReason,
		},
		Timestamp: timestamp,
	}, nil
}
