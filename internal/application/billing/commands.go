package billing

import (
	"context"
	"fmt"

	"github.com/freshtable/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Command is one billing operation. The set of variants is closed.
type Command interface {
	// Name identifies the command in logs and traces
	Name() string
	isCommand()
}

// AllocatePaymentCommand runs the allocation engine
type AllocatePaymentCommand struct {
	PaymentID  uuid.UUID
	InvoiceIDs []uuid.UUID
}

// ApplyCreditCommand runs the credit application engine
type ApplyCreditCommand struct {
	CustomerID  uuid.UUID
	Allocations []CreditAllocationRequest
}

// CreateRefundCommand opens a refund request
type CreateRefundCommand struct {
	Request CreateRefundRequest
}

// ApproveRefundCommand completes a pending refund
type ApproveRefundCommand struct {
	RefundID        uuid.UUID
	ApprovedBy      string
	ReferenceNumber string
}

// CancelRefundCommand cancels a pending refund
type CancelRefundCommand struct {
	RefundID uuid.UUID
}

// DeleteRefundCommand soft-deletes a pending refund
type DeleteRefundCommand struct {
	RefundID uuid.UUID
}

// PayInvoiceCommand pays a single invoice directly
type PayInvoiceCommand struct {
	Request PayInvoiceRequest
}

// RecordCashPaymentCommand stores a cash payment
type RecordCashPaymentCommand struct {
	Request RecordCashPaymentRequest
}

// RecordIncomingTransferCommand stores a resolved bank transfer
type RecordIncomingTransferCommand struct {
	Transfer IncomingTransfer
}

// ReversePaymentCommand undoes a payment
type ReversePaymentCommand struct {
	PaymentID uuid.UUID
}

func (AllocatePaymentCommand) Name() string        { return "allocate_payment" }
func (ApplyCreditCommand) Name() string            { return "apply_credit" }
func (CreateRefundCommand) Name() string           { return "create_refund" }
func (ApproveRefundCommand) Name() string          { return "approve_refund" }
func (CancelRefundCommand) Name() string           { return "cancel_refund" }
func (DeleteRefundCommand) Name() string           { return "delete_refund" }
func (PayInvoiceCommand) Name() string             { return "pay_invoice" }
func (RecordCashPaymentCommand) Name() string      { return "record_cash_payment" }
func (RecordIncomingTransferCommand) Name() string { return "record_incoming_transfer" }
func (ReversePaymentCommand) Name() string         { return "reverse_payment" }

func (AllocatePaymentCommand) isCommand()        {}
func (ApplyCreditCommand) isCommand()            {}
func (CreateRefundCommand) isCommand()           {}
func (ApproveRefundCommand) isCommand()          {}
func (CancelRefundCommand) isCommand()           {}
func (DeleteRefundCommand) isCommand()           {}
func (PayInvoiceCommand) isCommand()             {}
func (RecordCashPaymentCommand) isCommand()      {}
func (RecordIncomingTransferCommand) isCommand() {}
func (ReversePaymentCommand) isCommand()         {}

// TransferRecorded is the result of RecordIncomingTransferCommand
type TransferRecorded struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Created   bool      `json:"created"`
}

// Dispatcher routes commands to the service that owns them
type Dispatcher struct {
	allocation     *AllocationService
	credit         *CreditService
	refund         *RefundService
	invoicePayment *InvoicePaymentService
	intake         *PaymentIntakeService
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(
	allocation *AllocationService,
	credit *CreditService,
	refund *RefundService,
	invoicePayment *InvoicePaymentService,
	intake *PaymentIntakeService,
) *Dispatcher {
	return &Dispatcher{
		allocation:     allocation,
		credit:         credit,
		refund:         refund,
		invoicePayment: invoicePayment,
		intake:         intake,
	}
}

// Dispatch runs cmd and returns the owning service's result
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (any, error) {
	telemetry.SetAttributes(trace.SpanFromContext(ctx), telemetry.SpanAttrCommand, cmd.Name())

	switch c := cmd.(type) {
	case AllocatePaymentCommand:
		return result(d.allocation.AllocatePayment(ctx, c.PaymentID, c.InvoiceIDs))
	case ApplyCreditCommand:
		return result(d.credit.ApplyCredit(ctx, c.CustomerID, c.Allocations))
	case CreateRefundCommand:
		return result(d.refund.CreateRefund(ctx, c.Request))
	case ApproveRefundCommand:
		return result(d.refund.ApproveRefund(ctx, c.RefundID, c.ApprovedBy, c.ReferenceNumber))
	case CancelRefundCommand:
		return result(d.refund.CancelRefund(ctx, c.RefundID))
	case DeleteRefundCommand:
		return result(d.refund.DeleteRefund(ctx, c.RefundID))
	case PayInvoiceCommand:
		return result(d.invoicePayment.PayInvoice(ctx, c.Request))
	case RecordCashPaymentCommand:
		return result(d.intake.RecordCashPayment(ctx, c.Request))
	case RecordIncomingTransferCommand:
		payment, created, err := d.intake.RecordIncomingTransfer(ctx, c.Transfer)
		if err != nil {
			return nil, err
		}
		return &TransferRecorded{PaymentID: payment.ID, Created: created}, nil
	case ReversePaymentCommand:
		return result(d.intake.ReversePayment(ctx, c.PaymentID))
	default:
		return nil, fmt.Errorf("unhandled billing command %T", cmd)
	}
}

// result keeps a failed call from surfacing as a typed nil inside any
func result[T any](v *T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
