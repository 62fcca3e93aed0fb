package billing

import (
	"context"
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/freshtable/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoicePaymentService records a payment against a single invoice.
// It shares the invoice arithmetic of the allocation engine.
type InvoicePaymentService struct {
	tx     TxManager
	repos  Repositories
	orders OrderStatusSync
	logger *zap.Logger
	now    func() time.Time
}

// NewInvoicePaymentService creates a new InvoicePaymentService
func NewInvoicePaymentService(
	tx TxManager,
	repos Repositories,
	orders OrderStatusSync,
	logger *zap.Logger,
	opts ...Option,
) *InvoicePaymentService {
	o := buildOptions(opts)
	return &InvoicePaymentService{
		tx:     tx,
		repos:  repos,
		orders: orders,
		logger: logger.Named("billing.invoice_payment"),
		now:    o.now,
	}
}

// PayInvoiceRequest holds the inputs of a direct invoice payment
type PayInvoiceRequest struct {
	InvoiceID       uuid.UUID         `json:"invoice_id"`
	PaymentRecordID uuid.UUID         `json:"payment_record_id"`
	Amount          valueobject.Money `json:"amount"`
	AppliedBy       string            `json:"applied_by"`
}

// PayInvoiceResult is the invoice state after a direct payment
type PayInvoiceResult struct {
	InvoicePaymentID uuid.UUID             `json:"invoice_payment_id"`
	InvoiceID        uuid.UUID             `json:"invoice_id"`
	AmountApplied    valueobject.Money     `json:"amount_applied"`
	BalanceDue       valueobject.Money     `json:"balance_due"`
	PaymentStatus    billing.PaymentStatus `json:"payment_status"`
}

// PayInvoice applies 0 < amount <= balance_due to one invoice. The amount
// is drawn from the payment record's unallocated remainder.
func (s *InvoicePaymentService) PayInvoice(ctx context.Context, req PayInvoiceRequest) (*PayInvoiceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_payment", "pay_invoice")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, req.InvoiceID.String(),
		telemetry.SpanAttrPaymentID, req.PaymentRecordID.String(),
		telemetry.SpanAttrAmount, req.Amount.Round2().String(),
	)

	if !req.Amount.Round2().IsPositive() {
		err := shared.NewInsufficientFundsError(billing.CodeExceedsBalance,
			"Payment amount must be greater than 0, got %s", req.Amount.Round2())
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *PayInvoiceResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := s.now()

		// Payment before invoice, the same lock order as AllocatePayment
		payment, err := s.repos.Payments.FindByIDForUpdate(ctx, req.PaymentRecordID)
		if err != nil {
			return lookupErr(err, "payment", req.PaymentRecordID)
		}
		invoice, err := s.repos.Invoices.FindByIDForUpdate(ctx, req.InvoiceID)
		if err != nil {
			return lookupErr(err, "invoice", req.InvoiceID)
		}
		if payment.CustomerID != invoice.CustomerID {
			return shared.NewCrossTenantError("Payment %s and invoice %s belong to different customers", payment.ID, invoice.ID)
		}

		link, err := billing.NewInvoicePayment(invoice, payment.ID, req.Amount, req.AppliedBy, now)
		if err != nil {
			return err
		}
		if err := payment.ApplyDirect(link.Amount, now); err != nil {
			return err
		}
		app, err := invoice.ApplyPayment(link.Amount, now)
		if err != nil {
			return err
		}
		if err := s.repos.Invoices.Save(ctx, invoice); err != nil {
			return shared.WrapPersistence("save invoice", err)
		}
		if err := s.repos.Payments.Save(ctx, payment); err != nil {
			return shared.WrapPersistence("save payment", err)
		}
		if err := s.repos.InvoicePayments.Create(ctx, link); err != nil {
			return shared.WrapPersistence("create invoice payment", err)
		}

		if app.Status == billing.PaymentStatusPaid && s.orders != nil {
			if err := s.orders.MarkInvoicePaid(ctx, invoice.ID); err != nil {
				return shared.WrapPersistence("mark orders paid", err)
			}
		}

		result = &PayInvoiceResult{
			InvoicePaymentID: link.ID,
			InvoiceID:        invoice.ID,
			AmountApplied:    app.Applied,
			BalanceDue:       app.BalanceAfter,
			PaymentStatus:    app.Status,
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("invoice paid directly",
		zap.String("invoice_id", result.InvoiceID.String()),
		zap.String("amount", result.AmountApplied.String()),
		zap.String("status", string(result.PaymentStatus)))
	return result, nil
}

// ListOutstandingInvoices returns a customer's unpaid and partially paid
// invoices, oldest first
func (s *InvoicePaymentService) ListOutstandingInvoices(ctx context.Context, customerID uuid.UUID) ([]billing.Invoice, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	invoices, err := s.repos.Invoices.FindOutstandingByCustomer(ctx, customerID)
	if err != nil {
		return nil, shared.WrapPersistence("list outstanding invoices", err)
	}
	return invoices, nil
}
