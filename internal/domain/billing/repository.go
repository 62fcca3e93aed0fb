package billing

import (
	"context"

	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Repositories return shared.ErrNotFound for unknown or deleted ids.
// Every read filters on lifecycle ACTIVE. The ...ForUpdate variants take a
// row lock and must be called inside a transaction.

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an active invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate finds and locks an active invoice
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDsForUpdate locks the active invoices among ids, in id order.
	// Missing ids are simply absent from the result.
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]Invoice, error)

	// FindOutstandingByCustomer lists unpaid and partially paid invoices, oldest first
	FindOutstandingByCustomer(ctx context.Context, customerID uuid.UUID) ([]Invoice, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error
}

// PaymentRecordRepository defines the interface for payment record persistence
type PaymentRecordRepository interface {
	// FindByID finds an active payment record by ID
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentRecord, error)

	// FindByIDForUpdate finds and locks an active payment record
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*PaymentRecord, error)

	// FindBySourceReference finds an active payment by its transfer reference
	FindBySourceReference(ctx context.Context, source PaymentSource, reference string) (*PaymentRecord, error)

	// Save creates or updates a payment record
	Save(ctx context.Context, payment *PaymentRecord) error
}

// AllocationRepository defines the interface for allocation persistence
type AllocationRepository interface {
	// Create inserts allocation rows
	Create(ctx context.Context, allocations []*Allocation) error

	// FindByPayment lists the active allocations of a payment in order
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]Allocation, error)

	// FindByInvoice lists the active allocations made to an invoice
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Allocation, error)

	// SumByInvoice totals active allocations made to an invoice
	SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (valueobject.Money, error)

	// SoftDeleteByPayment marks every allocation of a payment as deleted
	SoftDeleteByPayment(ctx context.Context, paymentID uuid.UUID) error
}

// CreditRepository defines the interface for credit persistence
type CreditRepository interface {
	// FindByID finds an active credit by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Credit, error)

	// FindByIDForUpdate finds and locks an active credit
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Credit, error)

	// FindAvailableByCustomer lists drawable credits oldest first (created_at, id)
	FindAvailableByCustomer(ctx context.Context, customerID uuid.UUID) ([]Credit, error)

	// FindAvailableByCustomerForUpdate locks the FIFO pool of a customer
	FindAvailableByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) ([]Credit, error)

	// FindBySourcePaymentForUpdate locks the credits created from a payment's excess
	FindBySourcePaymentForUpdate(ctx context.Context, paymentID uuid.UUID) ([]Credit, error)

	// Save creates or updates a credit
	Save(ctx context.Context, credit *Credit) error
}

// CreditUsageRepository defines the interface for the append-only usage log
type CreditUsageRepository interface {
	// Create appends usage rows
	Create(ctx context.Context, usages []*CreditUsage) error

	// FindByCredit lists the usage of a credit in draw order
	FindByCredit(ctx context.Context, creditID uuid.UUID) ([]CreditUsage, error)

	// SumByCredit totals the usage of a credit
	SumByCredit(ctx context.Context, creditID uuid.UUID) (valueobject.Money, error)
}

// InvoicePaymentRepository defines the interface for direct invoice payment links
type InvoicePaymentRepository interface {
	// Create inserts a link row
	Create(ctx context.Context, payment *InvoicePayment) error

	// FindByInvoice lists the active links of an invoice
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]InvoicePayment, error)

	// FindByPayment lists the active links drawn from a payment record
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]InvoicePayment, error)

	// SoftDeleteByPayment marks every link of a payment record as deleted
	SoftDeleteByPayment(ctx context.Context, paymentID uuid.UUID) error
}

// RefundRepository defines the interface for refund persistence
type RefundRepository interface {
	// FindByID finds an active refund by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Refund, error)

	// FindByIDForUpdate finds and locks an active refund
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Refund, error)

	// FindByCustomer lists the active refunds of a customer, newest first
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]Refund, error)

	// SumCompletedByCredit totals completed refunds drawn from a credit
	SumCompletedByCredit(ctx context.Context, creditID uuid.UUID) (valueobject.Money, error)

	// Save creates or updates a refund
	Save(ctx context.Context, refund *Refund) error
}
