package billing

import (
	"strings"
	"time"

	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

const (
	// CodeExceedsBalance is raised when a direct payment is larger than what an invoice owes
	CodeExceedsBalance = "EXCEEDS_BALANCE"
	// CodeExceedsPayment is raised when a direct payment is larger than the
	// payment record's unallocated remainder
	CodeExceedsPayment = "EXCEEDS_PAYMENT"
)

// InvoicePayment links a payment record to a single invoice it settled directly
type InvoicePayment struct {
	shared.BaseEntity
	InvoiceID       uuid.UUID         `json:"invoice_id"`
	PaymentRecordID uuid.UUID         `json:"payment_record_id"`
	Amount          valueobject.Money `json:"amount"`
	AppliedBy       string            `json:"applied_by"`
	AppliedAt       time.Time         `json:"applied_at"`
}

// NewInvoicePayment validates a direct payment against the invoice's balance
func NewInvoicePayment(invoice *Invoice, paymentRecordID uuid.UUID, amount valueobject.Money, appliedBy string, now time.Time) (*InvoicePayment, error) {
	amount = amount.Round2()
	if strings.TrimSpace(appliedBy) == "" {
		return nil, shared.NewValidationError("INVALID_APPLIED_BY", "Applied by cannot be empty")
	}
	if !amount.IsPositive() || amount.GreaterThan(invoice.BalanceDue) {
		return nil, shared.NewInsufficientFundsError(CodeExceedsBalance,
			"Payment amount %s must be greater than 0 and at most the balance due %s", amount, invoice.BalanceDue)
	}
	return &InvoicePayment{
		BaseEntity:      shared.NewBaseEntity(now),
		InvoiceID:       invoice.ID,
		PaymentRecordID: paymentRecordID,
		Amount:          amount,
		AppliedBy:       appliedBy,
		AppliedAt:       now,
	}, nil
}
