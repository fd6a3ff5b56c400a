package gateway

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"
)

const abacatePaySignatureHeader = "x-abacatepay-signature"

var abacatePayChargeStatuses = map[string]PaymentStatus{
	"PENDING":   PaymentStatusPending,
	"PAID":      PaymentStatusPaid,
	"EXPIRED":   PaymentStatusExpired,
	"CANCELLED": PaymentStatusCancelled,
	"REFUNDED":  PaymentStatusRefunded,
}

var abacatePayPayoutStatuses = map[string]PayoutStatus{
	"PENDING":     PayoutStatusPending,
	"IN_PROGRESS": PayoutStatusProcessing,
	"DONE":        PayoutStatusCompleted,
	"FAILED":      PayoutStatusFailed,
}

var abacatePayEvents = map[string]string{
	"pix.paid":            EventPaymentPaid,
	"pix.expired":         EventPaymentExpired,
	"pix.cancelled":       EventPaymentCancelled,
	"pix.refunded":        EventPaymentRefunded,
	"withdraw.done":       EventPayoutCompleted,
	"withdraw.failed":     EventPayoutFailed,
	"withdraw.processing": EventPayoutProcessing,
}

type AbacatePayConfig struct {
	APIURL        string
	APIKey        string
	WebhookSecret string
}

type AbacatePayAdapter struct {
	client        *apiClient
	webhookSecret string
	logger        *slog.Logger
}

func NewAbacatePayAdapter(cfg AbacatePayConfig, logger *slog.Logger) *AbacatePayAdapter {
	return &AbacatePayAdapter{
		client: newAPIClient("abacatepay", cfg.APIURL, map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}),
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

func (a *AbacatePayAdapter) Name() string {
	return "abacatepay"
}

func (a *AbacatePayAdapter) SignatureHeader() string {
	return abacatePaySignatureHeader
}

type abacatePayChargePayload struct {
	Amount      int64              `json:"amount"`
	ExpiresIn   int                `json:"expiresIn"`
	Description string             `json:"description,omitempty"`
	Customer    abacatePayCustomer `json:"customer"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
}

type abacatePayCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	TaxID string `json:"taxId"`
}

type abacatePayPixData struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	BRCode       string `json:"brCode"`
	BRCodeBase64 string `json:"brCodeBase64"`
	ExpiresAt    string `json:"expiresAt"`
	PaidAt       string `json:"paidAt"`
	Amount       int64  `json:"amount"`
}

type abacatePayPixResponse struct {
	Data abacatePayPixData `json:"data"`
}

func (a *AbacatePayAdapter) GeneratePixCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := ValidateChargeRequest(a.Name(), req); err != nil {
		return nil, err
	}

	metadata := map[string]string{"externalId": req.ExternalID}
	for key, value := range req.Metadata {
		metadata[key] = value
	}

	payload := abacatePayChargePayload{
		Amount:      req.Amount,
		ExpiresIn:   req.ExpiresInMinutes,
		Description: req.Description,
		Customer: abacatePayCustomer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			TaxID: NormalizeDocument(req.Customer.Document),
		},
		Metadata: metadata,
	}

	var resp abacatePayPixResponse
	if err := a.client.do(ctx, "POST", "/v1/pixQrCode/create", payload, &resp); err != nil {
		a.logger.Error("abacatepay: charge creation failed", "external_id", req.ExternalID, "error", err)
		return nil, err
	}

	expiresAt, _ := time.Parse(time.RFC3339, resp.Data.ExpiresAt)

	return &Charge{
		GatewayID:  resp.Data.ID,
		QRCode:     resp.Data.BRCodeBase64,
		QRCodeText: resp.Data.BRCode,
		ExpiresAt:  expiresAt,
		Status:     mapStatus(abacatePayChargeStatuses, resp.Data.Status),
	}, nil
}

func (a *AbacatePayAdapter) GetPaymentStatus(ctx context.Context, gatewayID string) (*PaymentStatusResult, error) {
	var resp abacatePayPixResponse
	if err := a.client.do(ctx, "GET", "/v1/pixQrCode/check?id="+gatewayID, nil, &resp); err != nil {
		return nil, err
	}

	result := &PaymentStatusResult{
		GatewayID:  resp.Data.ID,
		Status:     mapStatus(abacatePayChargeStatuses, resp.Data.Status),
		PaidAmount: resp.Data.Amount,
	}
	if paidAt, err := time.Parse(time.RFC3339, resp.Data.PaidAt); err == nil {
		result.PaidAt = &paidAt
	}
	return result, nil
}

type abacatePayWithdrawPayload struct {
	Amount        int64  `json:"amount"`
	ExternalID    string `json:"externalId"`
	PixKey        string `json:"pixKey"`
	PixKeyType    string `json:"pixKeyType"`
	ReceiverName  string `json:"receiverName"`
	ReceiverTaxID string `json:"receiverTaxId"`
	Description   string `json:"description,omitempty"`
}

type abacatePayWithdrawData struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason"`
	CompletedAt   string `json:"completedAt"`
	EstimatedAt   string `json:"estimatedAt"`
}

type abacatePayWithdrawResponse struct {
	Data abacatePayWithdrawData `json:"data"`
}

func (a *AbacatePayAdapter) ExecutePayout(ctx context.Context, req PayoutRequest) (*Payout, error) {
	if err := ValidatePayoutRequest(a.Name(), req); err != nil {
		return nil, err
	}

	payload := abacatePayWithdrawPayload{
		Amount:        req.Amount,
		ExternalID:    req.ExternalID,
		PixKey:        req.PixKey,
		PixKeyType:    req.PixKeyType,
		ReceiverName:  req.RecipientName,
		ReceiverTaxID: NormalizeDocument(req.RecipientDocument),
		Description:   req.Description,
	}

	var resp abacatePayWithdrawResponse
	if err := a.client.do(ctx, "POST", "/v1/withdraw/create", payload, &resp); err != nil {
		a.logger.Error("abacatepay: payout execution failed", "external_id", req.ExternalID, "error", err)
		return nil, err
	}

	result := &Payout{
		GatewayID: resp.Data.ID,
		Status:    mapStatus(abacatePayPayoutStatuses, resp.Data.Status),
	}
	if estimatedAt, err := time.Parse(time.RFC3339, resp.Data.EstimatedAt); err == nil {
		result.EstimatedCompletionAt = &estimatedAt
	}
	return result, nil
}

func (a *AbacatePayAdapter) GetPayoutStatus(ctx context.Context, gatewayID string) (*PayoutStatusResult, error) {
	var resp abacatePayWithdrawResponse
	if err := a.client.do(ctx, "GET", "/v1/withdraw/check?id="+gatewayID, nil, &resp); err != nil {
		return nil, err
	}

	result := &PayoutStatusResult{
		GatewayID:     resp.Data.ID,
		Status:        mapStatus(abacatePayPayoutStatuses, resp.Data.Status),
		FailureReason: resp.Data.FailureReason,
	}
	if completedAt, err := time.Parse(time.RFC3339, resp.Data.CompletedAt); err == nil {
		result.CompletedAt = &completedAt
	}
	return result, nil
}

func (a *AbacatePayAdapter) ValidateWebhookSignature(rawBody []byte, signatureHeader string) bool {
	return ValidHMACHex(sha256.New, a.webhookSecret, rawBody, signatureHeader)
}

type abacatePayWebhookPayload struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	CreatedAt string `json:"createdAt"`
	Data      struct {
		ID            string `json:"id"`
		ExternalID    string `json:"externalId"`
		FailureReason string `json:"failureReason"`
	} `json:"data"`
}

func (a *AbacatePayAdapter) ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	payload, err := decodeWebhookPayload[abacatePayWebhookPayload](a.Name(), rawBody)
	if err != nil {
		return nil, err
	}

	eventType, ok := abacatePayEvents[payload.Event]
	if !ok {
		return nil, NewInvalidRequestError(a.Name(), fmt.Sprintf("unsupported event %q", payload.Event))
	}
	if payload.ID == "" {
		return nil, NewInvalidRequestError(a.Name(), "missing event id")
	}
	if payload.Data.ID == "" {
		return nil, NewInvalidRequestError(a.Name(), "missing transaction id")
	}

	timestamp, _ := time.Parse(time.RFC3339, payload.CreatedAt)

	return &WebhookEvent{
		Type:       eventType,
		GatewayID:  payload.Data.ID,
		ExternalID: payload.Data.ExternalID,
		EventID:    payload.ID,
		Data: map[string]interface{}{
			"provider_event": payload.Event,
			"failure_reason": payload.Data.FailureReason,
		},
		Timestamp: timestamp,
	}, nil
}
