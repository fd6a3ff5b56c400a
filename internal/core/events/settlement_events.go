package events

import (
	"time"

	"github.com/google/uuid"
)

// Settlement event types published by the webhook processor after its
// transaction commits. Handlers (content delivery, notifications) react
// without coupling to the processor.
const (
	PaymentPaidEventType     = "payment.paid"
	PaymentRefundedEventType = "payment.refunded"
	PayoutCompletedEventType = "payout.completed"
	PayoutFailedEventType    = "payout.failed"
)

func NewPaymentPaidEvent(paymentID, buyerID, creatorID, packID, amount int64) Event {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      PaymentPaidEventType,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"payment_id": paymentID,
			"buyer_id":   buyerID,
			"creator_id": creatorID,
			"pack_id":    packID,
			"amount":     amount,
		},
	}
}

func NewPaymentRefundedEvent(paymentID, buyerID, amount int64) Event {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      PaymentRefundedEventType,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"payment_id": paymentID,
			"buyer_id":   buyerID,
			"amount":     amount,
		},
	}
}

func NewPayoutCompletedEvent(payoutID, creatorID, amount int64) Event {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      PayoutCompletedEventType,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"payout_id":  payoutID,
			"creator_id": creatorID,
			"amount":     amount,
		},
	}
}

func NewPayoutFailedEvent(payoutID, creatorID, amount int64, reason string) Event {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      PayoutFailedEventType,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"payout_id":  payoutID,
			"creator_id": creatorID,
			"amount":     amount,
			"reason":     reason,
		},
	}
}
