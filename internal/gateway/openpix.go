package gateway

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"
)

const openPixSignatureHeader = "x-openpix-signature"

// openPixChargeStatuses maps OpenPix charge statuses to the canonical
// vocabulary. Anything unlisted stays pending.
var openPixChargeStatuses = map[string]PaymentStatus{
	"ACTIVE":    PaymentStatusPending,
	"COMPLETED": PaymentStatusPaid,
	"EXPIRED":   PaymentStatusExpired,
	"CANCELLED": PaymentStatusCancelled,
	"REFUNDED":  PaymentStatusRefunded,
}

var openPixPayoutStatuses = map[string]PayoutStatus{
	"CREATED":    PayoutStatusPending,
	"PROCESSING": PayoutStatusProcessing,
	"CONFIRMED":  PayoutStatusCompleted,
	"FAILED":     PayoutStatusFailed,
}

var openPixEvents = map[string]string{
	"OPENPIX:CHARGE_COMPLETED":  EventPaymentPaid,
	"OPENPIX:CHARGE_EXPIRED":    EventPaymentExpired,
	"OPENPIX:CHARGE_CANCELLED":  EventPaymentCancelled,
	"OPENPIX:CHARGE_REFUNDED":   EventPaymentRefunded,
	"OPENPIX:PAYMENT_CONFIRMED": EventPayoutCompleted,
	"OPENPIX:PAYMENT_FAILED":    EventPayoutFailed,
	"OPENPIX:PAYMENT_CREATED":   EventPayoutProcessing,
}

type OpenPixConfig struct {
	APIURL        string
	APIKey        string
	WebhookSecret string
}

type OpenPixAdapter struct {
	client        *apiClient
	webhookSecret string
	logger        *slog.Logger
}

func NewOpenPixAdapter(cfg OpenPixConfig, logger *slog.Logger) *OpenPixAdapter {
	return &OpenPixAdapter{
		client: newAPIClient("openpix", cfg.APIURL, map[string]string{
			"Authorization": cfg.APIKey,
		}),
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

func (a *OpenPixAdapter) Name() string {
	return "openpix"
}

func (a *OpenPixAdapter) SignatureHeader() string {
	return openPixSignatureHeader
}

type openPixChargePayload struct {
	CorrelationID string              `json:"correlationID"`
	Value         int64               `json:"value"`
	Comment       string              `json:"comment,omitempty"`
	ExpiresIn     int                 `json:"expiresIn"`
	Customer      openPixCustomer     `json:"customer"`
	AdditionalIn  []openPixExtraField `json:"additionalInfo,omitempty"`
}

type openPixCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	TaxID string `json:"taxID"`
}

type openPixExtraField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type openPixCharge struct {
	Identifier    string `json:"identifier"`
	CorrelationID string `json:"correlationID"`
	Status        string `json:"status"`
	BRCode        string `json:"brCode"`
	QRCodeImage   string `json:"qrCodeImage"`
	ExpiresDate   string `json:"expiresDate"`
	Value         int64  `json:"value"`
	PaidAt        string `json:"paidAt"`
}

type openPixChargeResponse struct {
	Charge openPixCharge `json:"charge"`
}

func (a *OpenPixAdapter) GeneratePixCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := ValidateChargeRequest(a.Name(), req); err != nil {
		return nil, err
	}

	payload := openPixChargePayload{
		CorrelationID: req.ExternalID,
		Value:         req.Amount,
		Comment:       req.Description,
		ExpiresIn:     req.ExpiresInMinutes * 60,
		Customer: openPixCustomer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			TaxID: NormalizeDocument(req.Customer.Document),
		},
	}
	for key, value := range req.Metadata {
		payload.AdditionalIn = append(payload.AdditionalIn, openPixExtraField{Key: key, Value: value})
	}

	var resp openPixChargeResponse
	if err := a.client.do(ctx, "POST", "/api/v1/charge", payload, &resp); err != nil {
		a.logger.Error("openpix: charge creation failed", "external_id", req.ExternalID, "error", err)
		return nil, err
	}

	expiresAt, _ := time.Parse(time.RFC3339, resp.Charge.ExpiresDate)

	return &Charge{
		GatewayID:  resp.Charge.Identifier,
		QRCode:     resp.Charge.QRCodeImage,
		QRCodeText: resp.Charge.BRCode,
		ExpiresAt:  expiresAt,
		Status:     mapStatus(openPixChargeStatuses, resp.Charge.Status),
	}, nil
}

func (a *OpenPixAdapter) GetPaymentStatus(ctx context.Context, gatewayID string) (*PaymentStatusResult, error) {
	var resp openPixChargeResponse
	if err := a.client.do(ctx, "GET", "/api/v1/charge/"+gatewayID, nil, &resp); err != nil {
		return nil, err
	}

	result := &PaymentStatusResult{
		GatewayID:  resp.Charge.Identifier,
		Status:     mapStatus(openPixChargeStatuses, resp.Charge.Status),
		PaidAmount: resp.Charge.Value,
	}
	if paidAt, err := time.Parse(time.RFC3339, resp.Charge.PaidAt); err == nil {
		result.PaidAt = &paidAt
	}
	return result, nil
}

type openPixPaymentPayload struct {
	Value                int64  `json:"value"`
	DestinationAlias     string `json:"destinationAlias"`
	DestinationAliasType string `json:"destinationAliasType"`
	CorrelationID        string `json:"correlationID"`
	Comment              string `json:"comment,omitempty"`
}

type openPixPayment struct {
	Identifier    string `json:"identifier"`
	CorrelationID string `json:"correlationID"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason"`
	ConfirmedAt   string `json:"confirmedAt"`
}

type openPixPaymentResponse struct {
	Payment openPixPayment `json:"payment"`
}

func (a *OpenPixAdapter) ExecutePayout(ctx context.Context, req PayoutRequest) (*Payout, error) {
	if err := ValidatePayoutRequest(a.Name(), req); err != nil {
		return nil, err
	}

	payload := openPixPaymentPayload{
		Value:                req.Amount,
		DestinationAlias:     req.PixKey,
		DestinationAliasType: req.PixKeyType,
		CorrelationID:        req.ExternalID,
		Comment:              req.Description,
	}

	var resp openPixPaymentResponse
	if err := a.client.do(ctx, "POST", "/api/v1/payment", payload, &resp); err != nil {
		a.logger.Error("openpix: payout execution failed", "external_id", req.ExternalID, "error", err)
		return nil, err
	}

	return &Payout{
		GatewayID: resp.Payment.Identifier,
		Status:    mapStatus(openPixPayoutStatuses, resp.Payment.Status),
	}, nil
}

func (a *OpenPixAdapter) GetPayoutStatus(ctx context.Context, gatewayID string) (*PayoutStatusResult, error) {
	var resp openPixPaymentResponse
	if err := a.client.do(ctx, "GET", "/api/v1/payment/"+gatewayID, nil, &resp); err != nil {
		return nil, err
	}

	result := &PayoutStatusResult{
		GatewayID:     resp.Payment.Identifier,
		Status:        mapStatus(openPixPayoutStatuses, resp.Payment.Status),
		FailureReason: resp.Payment.FailureReason,
	}
	if confirmedAt, err := time.Parse(time.RFC3339, resp.Payment.ConfirmedAt); err == nil {
		result.CompletedAt = &confirmedAt
	}
	return result, nil
}

func (a *OpenPixAdapter) ValidateWebhookSignature(rawBody []byte, signatureHeader string) bool {
	return ValidHMACHex(sha256.New, a.webhookSecret, rawBody, signatureHeader)
}

type openPixWebhookPayload struct {
	Event     string         `json:"event"`
	EventID   string         `json:"eventId"`
	CreatedAt string         `json:"createdAt"`
	Charge    openPixCharge  `json:"charge"`
	Payment   openPixPayment `json:"payment"`
}

func (a *OpenPixAdapter) ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	payload, err := decodeWebhookPayload[openPixWebhookPayload](a.Name(), rawBody)
	if err != nil {
		return nil, err
	}

	eventType, ok := openPixEvents[payload.Event]
	if !ok {
		return nil, NewInvalidRequestError(a.Name(), fmt.Sprintf("unsupported event %q", payload.Event))
	}
	if payload.EventID == "" {
		return nil, NewInvalidRequestError(a.Name(), "missing eventId")
	}

	gatewayID := payload.Charge.Identifier
	externalID := payload.Charge.CorrelationID
	if gatewayID == "" {
		gatewayID = payload.Payment.Identifier
		externalID = payload.Payment.CorrelationID
	}
	if gatewayID == "" {
		return nil, NewInvalidRequestError(a.Name(), "missing charge or payment identifier")
	}

	timestamp, _ := time.Parse(time.RFC3339, payload.CreatedAt)

	return &WebhookEvent{
		Type:       eventType,
		GatewayID:  gatewayID,
		ExternalID: externalID,
		EventID:    payload.EventID,
		Data: map[string]interface{}{
			"provider_event": payload.Event,
			"failure_reason": payload.Payment.FailureReason,
		},
		Timestamp: timestamp,
	}, nil
}
