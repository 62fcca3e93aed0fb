package handler

import (
	"context"

	appbilling "github.com/freshtable/billing/internal/application/billing"
	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CommandDispatcher runs billing commands
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd appbilling.Command) (any, error)
}

// CreditQueries reads the credit ledger
type CreditQueries interface {
	GetCustomerCreditBalance(ctx context.Context, customerID uuid.UUID) (*appbilling.CustomerCreditBalance, error)
	AuditCredit(ctx context.Context, creditID uuid.UUID) (*appbilling.CreditAudit, error)
}

// RefundQueries reads refunds
type RefundQueries interface {
	GetRefund(ctx context.Context, refundID uuid.UUID) (*billing.Refund, error)
	ListCustomerRefunds(ctx context.Context, customerID uuid.UUID) ([]billing.Refund, error)
}

// InvoiceQueries reads invoices
type InvoiceQueries interface {
	ListOutstandingInvoices(ctx context.Context, customerID uuid.UUID) ([]billing.Invoice, error)
}

// NotificationQueries reads staff notifications
type NotificationQueries interface {
	ListOpen(ctx context.Context, customerID uuid.UUID) ([]billing.Notification, error)
}

// AllocatePaymentRequest lists the invoices a payment should go to, in order
type AllocatePaymentRequest struct {
	InvoiceIDs []string `json:"invoice_ids" binding:"required,min=1,dive,uuid"`
}

// CreditAllocationItem asks for an amount of credit to go to one invoice
type CreditAllocationItem struct {
	InvoiceID string `json:"invoice_id" binding:"required,uuid"`
	Amount    string `json:"amount" binding:"required,money"`
}

// ApplyCreditRequest is the body of a credit application
type ApplyCreditRequest struct {
	Allocations []CreditAllocationItem `json:"allocations" binding:"required,min=1,dive"`
}

// CreateRefundRequest is the body of a new refund
type CreateRefundRequest struct {
	SourceType      string `json:"source_type" binding:"required,oneof=CREDIT PAYMENT"`
	CustomerID      string `json:"customer_id" binding:"required,uuid"`
	CreditID        string `json:"credit_id" binding:"required_if=SourceType CREDIT,omitempty,uuid"`
	PaymentRecordID string `json:"payment_record_id" binding:"required_if=SourceType PAYMENT,omitempty,uuid"`
	Amount          string `json:"amount" binding:"required,money"`
	Method          string `json:"method" binding:"required,max=50"`
	Reason          string `json:"reason" binding:"max=500"`
	RequestedBy     string `json:"requested_by" binding:"required,max=100"`
}

// Refund actions accepted by POST /refunds/:refund_id
const (
	RefundActionApprove = "approve"
	RefundActionCancel  = "cancel"
)

// RefundActionRequest moves a pending refund forward
type RefundActionRequest struct {
	Action          string `json:"action" binding:"required,oneof=approve cancel"`
	ApprovedBy      string `json:"approved_by" binding:"required_if=Action approve,max=100"`
	ReferenceNumber string `json:"reference_number" binding:"max=100"`
}

// PayInvoiceRequest is the body of a direct invoice payment
type PayInvoiceRequest struct {
	PaymentRecordID string `json:"payment_record_id" binding:"required,uuid"`
	Amount          string `json:"amount" binding:"required,money"`
	AppliedBy       string `json:"applied_by" binding:"required,max=100"`
}

// RecordCashPaymentRequest is the body of a cash payment
type RecordCashPaymentRequest struct {
	CustomerID string `json:"customer_id" binding:"required,uuid"`
	Amount     string `json:"amount" binding:"required,money"`
	ReceivedBy string `json:"received_by" binding:"required,max=100"`
}

// RecordTransferRequest is the body of a resolved bank transfer
type RecordTransferRequest struct {
	CustomerID        string `json:"customer_id" binding:"required,uuid"`
	Amount            string `json:"amount" binding:"required,money"`
	TransferReference string `json:"transfer_reference" binding:"required,max=100"`
}

// mustUUID parses an ID the binding layer already checked
func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

// optionalUUID parses an optional ID the binding layer already checked
func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id := uuid.MustParse(s)
	return &id
}

// amountOf parses an amount the binding layer already checked
func amountOf(s string) valueobject.Money {
	return valueobject.MustMoney(s)
}

func (r ApplyCreditRequest) toCommand(customerID uuid.UUID) appbilling.ApplyCreditCommand {
	cmd := appbilling.ApplyCreditCommand{CustomerID: customerID}
	for _, a := range r.Allocations {
		cmd.Allocations = append(cmd.Allocations, appbilling.CreditAllocationRequest{
			InvoiceID: mustUUID(a.InvoiceID),
			Amount:    amountOf(a.Amount),
		})
	}
	return cmd
}

func (r CreateRefundRequest) toCommand() appbilling.CreateRefundCommand {
	return appbilling.CreateRefundCommand{Request: appbilling.CreateRefundRequest{
		SourceType:      billing.RefundSourceType(r.SourceType),
		CustomerID:      mustUUID(r.CustomerID),
		CreditID:        optionalUUID(r.CreditID),
		PaymentRecordID: optionalUUID(r.PaymentRecordID),
		Amount:          amountOf(r.Amount),
		Method:          r.Method,
		Reason:          r.Reason,
		RequestedBy:     r.RequestedBy,
	}}
}
