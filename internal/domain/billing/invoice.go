package billing

import (
	"strings"
	"time"

	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PaymentStatus represents how much of an invoice has been settled
type PaymentStatus string

const (
	PaymentStatusUnpaid      PaymentStatus = "UNPAID"
	PaymentStatusPartialPaid PaymentStatus = "PARTIAL_PAID"
	PaymentStatusPaid        PaymentStatus = "PAID"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartialPaid, PaymentStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// AcceptsPayment returns true if more money can be applied in this status
func (s PaymentStatus) AcceptsPayment() bool {
	return s == PaymentStatusUnpaid || s == PaymentStatusPartialPaid
}

// StatusFor derives the payment status from paid and outstanding amounts.
// Every path that moves money onto or off an invoice uses this rule.
func StatusFor(amountPaid, balanceDue valueobject.Money) PaymentStatus {
	switch {
	case balanceDue.IsSettled():
		return PaymentStatusPaid
	case amountPaid.IsSettled():
		return PaymentStatusUnpaid
	default:
		return PaymentStatusPartialPaid
	}
}

// Invoice is a customer bill produced at billing finalization
type Invoice struct {
	shared.BaseEntity
	CustomerID    uuid.UUID         `json:"customer_id"`
	InvoiceNumber string            `json:"invoice_number"`
	TotalAmount   valueobject.Money `json:"total_amount"`
	AmountPaid    valueobject.Money `json:"amount_paid"`
	BalanceDue    valueobject.Money `json:"balance_due"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
}

// NewInvoice creates an unpaid invoice
func NewInvoice(customerID uuid.UUID, invoiceNumber string, total valueobject.Money, now time.Time) (*Invoice, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if strings.TrimSpace(invoiceNumber) == "" {
		return nil, shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if total.IsNegative() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Invoice total cannot be negative: %s", total)
	}

	total = total.Round2()
	inv := &Invoice{
		BaseEntity:    shared.NewBaseEntity(now),
		CustomerID:    customerID,
		InvoiceNumber: invoiceNumber,
		TotalAmount:   total,
		AmountPaid:    valueobject.Zero(),
		BalanceDue:    total,
	}
	inv.PaymentStatus = StatusFor(inv.AmountPaid, inv.BalanceDue)
	return inv, nil
}

// IsPayable returns true if the invoice is active and still owes money
func (i *Invoice) IsPayable() bool {
	return i.IsActive() && i.PaymentStatus.AcceptsPayment()
}

// PaymentApplication captures an invoice before and after money was applied
type PaymentApplication struct {
	Applied       valueobject.Money
	BalanceBefore valueobject.Money
	BalanceAfter  valueobject.Money
	Status        PaymentStatus
}

// ApplyPayment folds money (cash, transfer or credit) into amount paid
// and recomputes the balance and status
func (i *Invoice) ApplyPayment(amount valueobject.Money, now time.Time) (PaymentApplication, error) {
	amount = amount.Round2()
	if !amount.IsPositive() {
		return PaymentApplication{}, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive, got %s", amount)
	}
	if !i.IsActive() {
		return PaymentApplication{}, shared.NewStateConflictError("Invoice %s is deleted", i.InvoiceNumber)
	}

	before := i.BalanceDue
	i.AmountPaid = i.AmountPaid.Add(amount).Round2()
	i.recompute(now)

	return PaymentApplication{
		Applied:       amount,
		BalanceBefore: before,
		BalanceAfter:  i.BalanceDue,
		Status:        i.PaymentStatus,
	}, nil
}

// ReversePayment takes previously applied money back off the invoice
func (i *Invoice) ReversePayment(amount valueobject.Money, now time.Time) error {
	amount = amount.Round2()
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Reversal amount must be positive, got %s", amount)
	}
	i.AmountPaid = i.AmountPaid.Subtract(amount).Round2().ClampAtLeast(valueobject.Zero())
	i.recompute(now)
	return nil
}

// recompute keeps balance_due = total - amount_paid, never below zero
func (i *Invoice) recompute(now time.Time) {
	i.BalanceDue = i.TotalAmount.Subtract(i.AmountPaid).Round2().ClampAtLeast(valueobject.Zero())
	i.PaymentStatus = StatusFor(i.AmountPaid, i.BalanceDue)
	i.Touch(now)
}
