package billing

import (
	"strings"
	"time"

	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// RefundStatus represents the status of a refund request
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "PENDING"
	RefundStatusCompleted RefundStatus = "COMPLETED"
	RefundStatusCancelled RefundStatus = "CANCELLED"
)

// IsValid checks if the status is a valid RefundStatus
func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundStatusPending, RefundStatusCompleted, RefundStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of RefundStatus
func (s RefundStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are allowed
func (s RefundStatus) IsTerminal() bool {
	return s == RefundStatusCompleted || s == RefundStatusCancelled
}

// RefundSourceType identifies what the refund pays back out of
type RefundSourceType string

const (
	RefundSourceCredit  RefundSourceType = "CREDIT"
	RefundSourcePayment RefundSourceType = "PAYMENT"
)

// IsValid checks if the source type is valid
func (t RefundSourceType) IsValid() bool {
	return t == RefundSourceCredit || t == RefundSourcePayment
}

// String returns the string representation of RefundSourceType
func (t RefundSourceType) String() string {
	return string(t)
}

// Refund is a request to give money back to a customer
type Refund struct {
	shared.BaseEntity
	SourceType      RefundSourceType  `json:"source_type"`
	CreditID        *uuid.UUID        `json:"credit_id,omitempty"`
	PaymentRecordID *uuid.UUID        `json:"payment_record_id,omitempty"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	RefundAmount    valueobject.Money `json:"refund_amount"`
	RefundMethod    string            `json:"refund_method"`
	Reason          string            `json:"reason"`
	RequestedBy     string            `json:"requested_by"`
	Status          RefundStatus      `json:"status"`
	ApprovedBy      string            `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time        `json:"approved_at,omitempty"`
	ReferenceNumber string            `json:"reference_number,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
}

// NewRefundParams holds the inputs of a refund request
type NewRefundParams struct {
	SourceType      RefundSourceType
	CreditID        *uuid.UUID
	PaymentRecordID *uuid.UUID
	CustomerID      uuid.UUID
	Amount          valueobject.Money
	Method          string
	Reason          string
	RequestedBy     string
}

// NewRefund creates a pending refund
func NewRefund(p NewRefundParams, now time.Time) (*Refund, error) {
	if !p.SourceType.IsValid() {
		return nil, shared.NewValidationError("INVALID_SOURCE_TYPE", "Invalid refund source type %q", p.SourceType)
	}
	if p.SourceType == RefundSourceCredit && (p.CreditID == nil || *p.CreditID == uuid.Nil) {
		return nil, shared.NewValidationError("INVALID_SOURCE", "Credit ID is required for a credit refund")
	}
	if p.SourceType == RefundSourcePayment && (p.PaymentRecordID == nil || *p.PaymentRecordID == uuid.Nil) {
		return nil, shared.NewValidationError("INVALID_SOURCE", "Payment record ID is required for a payment refund")
	}
	if p.CustomerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	amount := p.Amount.Round2()
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Refund amount must be positive, got %s", amount)
	}
	if strings.TrimSpace(p.Method) == "" {
		return nil, shared.NewValidationError("INVALID_METHOD", "Refund method cannot be empty")
	}
	if strings.TrimSpace(p.RequestedBy) == "" {
		return nil, shared.NewValidationError("INVALID_REQUESTER", "Requested by cannot be empty")
	}

	r := &Refund{
		BaseEntity:   shared.NewBaseEntity(now),
		SourceType:   p.SourceType,
		CustomerID:   p.CustomerID,
		RefundAmount: amount,
		RefundMethod: p.Method,
		Reason:       p.Reason,
		RequestedBy:  p.RequestedBy,
		Status:       RefundStatusPending,
	}
	switch p.SourceType {
	case RefundSourceCredit:
		r.CreditID = p.CreditID
	case RefundSourcePayment:
		r.PaymentRecordID = p.PaymentRecordID
	}
	return r, nil
}

// Approve completes the refund. This is the only transition into COMPLETED.
func (r *Refund) Approve(approvedBy, referenceNumber string, now time.Time) error {
	if err := r.requirePending("approve"); err != nil {
		return err
	}
	if strings.TrimSpace(approvedBy) == "" {
		return shared.NewValidationError("INVALID_APPROVER", "Approved by cannot be empty")
	}
	r.Status = RefundStatusCompleted
	r.ApprovedBy = approvedBy
	r.ApprovedAt = &now
	r.ReferenceNumber = referenceNumber
	r.Touch(now)
	return nil
}

// Cancel withdraws a pending refund without moving any money
func (r *Refund) Cancel(now time.Time) error {
	if err := r.requirePending("cancel"); err != nil {
		return err
	}
	r.Status = RefundStatusCancelled
	r.CancelledAt = &now
	r.Touch(now)
	return nil
}

// Delete soft-deletes a pending refund; terminal refunds are immutable
func (r *Refund) Delete(now time.Time) error {
	if err := r.requirePending("delete"); err != nil {
		return err
	}
	r.MarkDeleted(now)
	return nil
}

// DeductsCredit returns true if completing this refund draws down a credit
func (r *Refund) DeductsCredit() bool {
	return r.SourceType == RefundSourceCredit && r.CreditID != nil
}

func (r *Refund) requirePending(action string) error {
	if !r.IsActive() {
		return shared.NewStateConflictError("Cannot %s refund %s: refund is deleted", action, r.ID)
	}
	if r.Status != RefundStatusPending {
		return shared.NewStateConflictError("Cannot %s refund %s in status %s", action, r.ID, r.Status)
	}
	return nil
}
