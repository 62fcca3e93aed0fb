package billing

import (
	"strings"
	"time"

	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AllocationStatus tracks how much of a payment has been distributed
type AllocationStatus string

const (
	AllocationStatusUnallocated    AllocationStatus = "UNALLOCATED"
	AllocationStatusPartial        AllocationStatus = "PARTIAL"
	AllocationStatusFullyAllocated AllocationStatus = "FULLY_ALLOCATED"
	AllocationStatusHasExcess      AllocationStatus = "HAS_EXCESS"
)

// IsValid checks if the status is a valid AllocationStatus
func (s AllocationStatus) IsValid() bool {
	switch s {
	case AllocationStatusUnallocated, AllocationStatusPartial,
		AllocationStatusFullyAllocated, AllocationStatusHasExcess:
		return true
	}
	return false
}

// String returns the string representation of AllocationStatus
func (s AllocationStatus) String() string {
	return string(s)
}

// PaymentSource identifies where the money came from
type PaymentSource string

const (
	PaymentSourceCash             PaymentSource = "CASH"
	PaymentSourceExternalTransfer PaymentSource = "EXTERNAL_TRANSFER"
)

// IsValid checks if the source is a valid PaymentSource
func (s PaymentSource) IsValid() bool {
	return s == PaymentSourceCash || s == PaymentSourceExternalTransfer
}

// String returns the string representation of PaymentSource
func (s PaymentSource) String() string {
	return string(s)
}

// PaymentRecord is money received from a customer
type PaymentRecord struct {
	shared.BaseEntity
	CustomerID       uuid.UUID         `json:"customer_id"`
	Amount           valueobject.Money `json:"amount"`
	TotalAllocated   valueobject.Money `json:"total_allocated"`
	ExcessAmount     valueobject.Money `json:"excess_amount"`
	AllocationStatus AllocationStatus  `json:"allocation_status"`
	Source           PaymentSource     `json:"source"`
	SourceReference  string            `json:"source_reference"` // Bank transfer reference for external transfers
	ReceivedBy       string            `json:"received_by"`
	ReceivedAt       time.Time         `json:"received_at"`
}

// NewCashPayment records cash handed over to staff
func NewCashPayment(customerID uuid.UUID, amount valueobject.Money, receivedBy string, now time.Time) (*PaymentRecord, error) {
	if strings.TrimSpace(receivedBy) == "" {
		return nil, shared.NewValidationError("INVALID_RECEIVER", "Received by cannot be empty")
	}
	return newPaymentRecord(customerID, amount, PaymentSourceCash, "", receivedBy, now)
}

// NewTransferPayment records a resolved incoming bank transfer
func NewTransferPayment(customerID uuid.UUID, amount valueobject.Money, reference string, now time.Time) (*PaymentRecord, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, shared.NewValidationError("INVALID_REFERENCE", "Transfer reference cannot be empty")
	}
	return newPaymentRecord(customerID, amount, PaymentSourceExternalTransfer, reference, "", now)
}

func newPaymentRecord(customerID uuid.UUID, amount valueobject.Money, source PaymentSource, reference, receivedBy string, now time.Time) (*PaymentRecord, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	amount = amount.Round2()
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive, got %s", amount)
	}
	return &PaymentRecord{
		BaseEntity:       shared.NewBaseEntity(now),
		CustomerID:       customerID,
		Amount:           amount,
		TotalAllocated:   valueobject.Zero(),
		ExcessAmount:     valueobject.Zero(),
		AllocationStatus: AllocationStatusUnallocated,
		Source:           source,
		SourceReference:  reference,
		ReceivedBy:       receivedBy,
		ReceivedAt:       now,
	}, nil
}

// Remaining returns money not yet allocated nor turned into credit
func (p *PaymentRecord) Remaining() valueobject.Money {
	return p.Amount.Subtract(p.TotalAllocated).Subtract(p.ExcessAmount).Round2()
}

// CheckAllocatable verifies the payment can take part in another allocation run
func (p *PaymentRecord) CheckAllocatable() error {
	if p.AllocationStatus == AllocationStatusFullyAllocated {
		return shared.NewStateConflictError("Payment %s is already fully allocated", p.ID)
	}
	if !p.Remaining().ExceedsEpsilon() {
		return shared.NewStateConflictError("Payment %s has no unallocated amount", p.ID)
	}
	return nil
}

// CompleteAllocation records the amount placed on invoices in one run and
// settles what is left over. It returns the excess that should become credit.
func (p *PaymentRecord) CompleteAllocation(applied valueobject.Money, now time.Time) valueobject.Money {
	p.TotalAllocated = p.TotalAllocated.Add(applied).Round2()
	excess := p.Amount.Subtract(p.TotalAllocated).Subtract(p.ExcessAmount).Round2()

	if excess.ExceedsEpsilon() {
		p.ExcessAmount = p.ExcessAmount.Add(excess).Round2()
		p.AllocationStatus = AllocationStatusHasExcess
	} else {
		excess = valueobject.Zero()
		p.AllocationStatus = AllocationStatusFullyAllocated
	}
	p.Touch(now)
	return excess
}

// ApplyDirect draws amount from the unallocated remainder for a single
// invoice payment. A direct payment never creates excess credit.
func (p *PaymentRecord) ApplyDirect(amount valueobject.Money, now time.Time) error {
	amount = amount.Round2()
	if !p.IsActive() {
		return shared.NewStateConflictError("Payment %s is deleted", p.ID)
	}
	remaining := p.Remaining()
	if amount.GreaterThan(remaining) {
		return shared.NewInsufficientFundsError(CodeExceedsPayment,
			"Payment amount %s exceeds the unallocated %s of payment %s", amount, remaining, p.ID)
	}
	p.TotalAllocated = p.TotalAllocated.Add(amount).Round2()
	p.AllocationStatus = AllocationStatusFullyAllocated
	if p.Remaining().ExceedsEpsilon() {
		p.AllocationStatus = AllocationStatusPartial
	}
	p.Touch(now)
	return nil
}

// IsConserved reports whether allocated plus excess equals the amount.
// A partially drawn payment only has to stay within its amount.
func (p *PaymentRecord) IsConserved() bool {
	switch p.AllocationStatus {
	case AllocationStatusUnallocated:
		return true
	case AllocationStatusPartial:
		return !p.TotalAllocated.Add(p.ExcessAmount).Subtract(p.Amount).ExceedsEpsilon()
	}
	return p.TotalAllocated.Add(p.ExcessAmount).WithinTolerance(p.Amount, valueobject.ConservationTolerance)
}

// IsExternalTransfer returns true if the payment came from a bank transfer
func (p *PaymentRecord) IsExternalTransfer() bool {
	return p.Source == PaymentSourceExternalTransfer
}

// Reverse clears the allocation totals and soft-deletes the payment
func (p *PaymentRecord) Reverse(now time.Time) error {
	if !p.IsActive() {
		return shared.NewStateConflictError("Payment %s is already deleted", p.ID)
	}
	p.TotalAllocated = valueobject.Zero()
	p.ExcessAmount = valueobject.Zero()
	p.AllocationStatus = AllocationStatusUnallocated
	p.MarkDeleted(now)
	return nil
}
