package billing

import (
	"time"

	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PendingTransfer is a bank transfer matched to a customer that has not yet
// been turned into a payment record
type PendingTransfer struct {
	Reference  string            `json:"reference"`
	CustomerID uuid.UUID         `json:"customer_id"`
	SenderName string            `json:"sender_name"`
	Amount     valueobject.Money `json:"amount"`
	ReceivedAt time.Time         `json:"received_at"`
}
