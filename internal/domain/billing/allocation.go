package billing

import (
	"time"

	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Allocation is one portion of a payment applied to exactly one invoice.
// Rows are immutable once written except for soft-delete on reversal.
type Allocation struct {
	shared.BaseEntity
	PaymentRecordID      uuid.UUID         `json:"payment_record_id"`
	InvoiceID            uuid.UUID         `json:"invoice_id"`
	CustomerID           uuid.UUID         `json:"customer_id"`
	OrderIndex           int               `json:"order_index"` // Position in the caller-supplied invoice list
	AllocatedAmount      valueobject.Money `json:"allocated_amount"`
	InvoiceBalanceBefore valueobject.Money `json:"invoice_balance_before"`
	InvoiceBalanceAfter  valueobject.Money `json:"invoice_balance_after"`
	ResultingStatus      PaymentStatus     `json:"resulting_status"`
}

// NewAllocation records the outcome of applying part of a payment to an invoice
func NewAllocation(payment *PaymentRecord, invoice *Invoice, orderIndex int, app PaymentApplication, now time.Time) *Allocation {
	return &Allocation{
		BaseEntity:           shared.NewBaseEntity(now),
		PaymentRecordID:      payment.ID,
		InvoiceID:            invoice.ID,
		CustomerID:           payment.CustomerID,
		OrderIndex:           orderIndex,
		AllocatedAmount:      app.Applied,
		InvoiceBalanceBefore: app.BalanceBefore,
		InvoiceBalanceAfter:  app.BalanceAfter,
		ResultingStatus:      app.Status,
	}
}
