package billing

import (
	"time"

	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Error codes raised by credit operations
const (
	CodeInsufficientCredit        = "INSUFFICIENT_CREDIT"
	CodeInsufficientCreditBalance = "INSUFFICIENT_CREDIT_BALANCE"
)

// CreditStatus represents the status of a customer credit
type CreditStatus string

const (
	CreditStatusAvailable CreditStatus = "AVAILABLE" // Has balance left to draw
	CreditStatusUsed      CreditStatus = "USED"      // Exhausted by invoice payments
	CreditStatusRefunded  CreditStatus = "REFUNDED"  // Exhausted by a refund
	CreditStatusExpired   CreditStatus = "EXPIRED"   // Withdrawn when its source payment was reversed
)

// IsValid checks if the status is a valid CreditStatus
func (s CreditStatus) IsValid() bool {
	switch s {
	case CreditStatusAvailable, CreditStatusUsed, CreditStatusRefunded, CreditStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of CreditStatus
func (s CreditStatus) String() string {
	return string(s)
}

// Credit is reusable stored value belonging to a customer
type Credit struct {
	shared.BaseEntity
	CustomerID      uuid.UUID         `json:"customer_id"`
	SourcePaymentID *uuid.UUID        `json:"source_payment_id,omitempty"` // Nil for manual deposits
	OriginalAmount  valueobject.Money `json:"original_amount"`
	CurrentBalance  valueobject.Money `json:"current_balance"`
	Status          CreditStatus      `json:"status"`
}

// CreditUsage is one FIFO draw of a credit against an invoice. Append-only.
type CreditUsage struct {
	ID         uuid.UUID         `json:"id"`
	CreditID   uuid.UUID         `json:"credit_id"`
	InvoiceID  uuid.UUID         `json:"invoice_id"`
	AmountUsed valueobject.Money `json:"amount_used"`
	UsedAt     time.Time         `json:"used_at"`
}

// NewCredit creates an available credit
func NewCredit(customerID uuid.UUID, sourcePaymentID *uuid.UUID, amount valueobject.Money, now time.Time) (*Credit, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	amount = amount.Round2()
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Credit amount must be positive, got %s", amount)
	}
	return &Credit{
		BaseEntity:      shared.NewBaseEntity(now),
		CustomerID:      customerID,
		SourcePaymentID: sourcePaymentID,
		OriginalAmount:  amount,
		CurrentBalance:  amount,
		Status:          CreditStatusAvailable,
	}, nil
}

// IsDrawable returns true if the credit is active, available and has balance
func (c *Credit) IsDrawable() bool {
	return c.IsActive() && c.Status == CreditStatusAvailable && c.CurrentBalance.IsPositive()
}

// Consume draws from the credit to pay an invoice
func (c *Credit) Consume(amount valueobject.Money, invoiceID uuid.UUID, now time.Time) (*CreditUsage, error) {
	amount = amount.Round2()
	if err := c.deduct(amount, CreditStatusUsed, now); err != nil {
		return nil, err
	}
	return &CreditUsage{
		ID:         uuid.New(),
		CreditID:   c.ID,
		InvoiceID:  invoiceID,
		AmountUsed: amount,
		UsedAt:     now,
	}, nil
}

// RefundDeduct pays money back out of the credit
func (c *Credit) RefundDeduct(amount valueobject.Money, now time.Time) error {
	return c.deduct(amount.Round2(), CreditStatusRefunded, now)
}

// CheckRefundable verifies a refund of amount can later be deducted
func (c *Credit) CheckRefundable(amount valueobject.Money) error {
	if !c.IsActive() || c.Status != CreditStatusAvailable {
		return shared.NewInsufficientFundsError(CodeInsufficientCreditBalance,
			"Credit %s is not available (status %s)", c.ID, c.Status)
	}
	if c.CurrentBalance.LessThan(amount) {
		return shared.NewInsufficientFundsError(CodeInsufficientCreditBalance,
			"Credit balance %s is less than refund amount %s", c.CurrentBalance, amount.Round2())
	}
	return nil
}

// Expire withdraws a credit nobody has drawn on yet
func (c *Credit) Expire(now time.Time) error {
	if c.Status != CreditStatusAvailable || !c.CurrentBalance.Equals(c.OriginalAmount) {
		return shared.NewStateConflictError("Credit %s has already been drawn (balance %s of %s, status %s)",
			c.ID, c.CurrentBalance, c.OriginalAmount, c.Status)
	}
	c.Status = CreditStatusExpired
	c.Touch(now)
	return nil
}

func (c *Credit) deduct(amount valueobject.Money, exhausted CreditStatus, now time.Time) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Credit deduction must be positive, got %s", amount)
	}
	if !c.IsActive() || c.Status != CreditStatusAvailable {
		return shared.NewStateConflictError("Credit %s is not available (status %s)", c.ID, c.Status)
	}
	if amount.Subtract(c.CurrentBalance).ExceedsEpsilon() {
		return shared.NewInsufficientFundsError(CodeInsufficientCreditBalance,
			"Credit %s balance %s is less than %s", c.ID, c.CurrentBalance, amount)
	}

	c.CurrentBalance = c.CurrentBalance.Subtract(amount).Round2().ClampAtLeast(valueobject.Zero())
	if c.CurrentBalance.IsSettled() {
		c.Status = exhausted
	}
	c.Touch(now)
	return nil
}
