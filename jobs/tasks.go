package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuoteExpiration sweeps overdue quotes into EXPIRED.
	TaskQuoteExpiration = "quotes:expire"
	// TaskCartPurge removes carts past their TTL.
	TaskCartPurge = "carts:purge"
	// TaskWhatsAppNotify renders and dispatches a WhatsApp message.
	TaskWhatsAppNotify = "notify:whatsapp"
)

// WhatsAppPayload describes an outbound WhatsApp notification.
type WhatsAppPayload struct {
	Kind    string `json:"kind"` // "order" or "quote"
	OrderID string `json:"order_id,omitempty"`
	QuoteID string `json:"quote_id,omitempty"`
	Phone   string `json:"phone"`
	Name    string `json:"name,omitempty"`
}

// NewQuoteExpirationTask constructs the periodic expiration sweep task.
func NewQuoteExpirationTask() *asynq.Task {
	return asynq.NewTask(TaskQuoteExpiration, nil)
}

// NewCartPurgeTask constructs the periodic cart purge task.
func NewCartPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskCartPurge, nil)
}

// NewWhatsAppNotifyTask constructs a notification task.
func NewWhatsAppNotifyTask(payload WhatsAppPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWhatsAppNotify, data), nil
}
