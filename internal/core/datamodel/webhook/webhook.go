package webhook

import (
	"encoding/json"
	"time"
)

// Event is one inbound provider notification. The (provider, event_id) unique
// key is the idempotency guard: a processed row makes replay a no-op, and
// concurrent duplicate delivery is resolved by the database rejecting the
// second insert.
type Event struct {
	ID          int64           `gorm:"primaryKey"`
	Provider    string          `gorm:"column:provider;not null;uniqueIndex:ux_webhook_events_provider_event,priority:1"`
	EventID     string          `gorm:"column:event_id;not null;uniqueIndex:ux_webhook_events_provider_event,priority:2"`
	EventType   string          `gorm:"column:event_type;not null"`
	Payload     json.RawMessage `gorm:"column:payload;type:jsonb"`
	Processed   bool            `gorm:"column:processed;default:false"`
	ProcessedAt *time.Time      `gorm:"column:processed_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;default:now()"`
}

func (Event) TableName() string {
	return "webhook_events"
}
