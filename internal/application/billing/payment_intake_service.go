package billing

import (
	"context"
	"errors"
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/freshtable/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// PaymentIntakeService records incoming money and reverses payments
type PaymentIntakeService struct {
	tx     TxManager
	repos  Repositories
	orders OrderStatusSync
	logger *zap.Logger
	now    func() time.Time
}

// NewPaymentIntakeService creates a new PaymentIntakeService
func NewPaymentIntakeService(
	tx TxManager,
	repos Repositories,
	orders OrderStatusSync,
	logger *zap.Logger,
	opts ...Option,
) *PaymentIntakeService {
	o := buildOptions(opts)
	return &PaymentIntakeService{
		tx:     tx,
		repos:  repos,
		orders: orders,
		logger: logger.Named("billing.intake"),
		now:    o.now,
	}
}

// RecordCashPaymentRequest holds cash handed over to staff
type RecordCashPaymentRequest struct {
	CustomerID uuid.UUID         `json:"customer_id"`
	Amount     valueobject.Money `json:"amount"`
	ReceivedBy string            `json:"received_by"`
}

// IncomingTransfer is a bank transfer already matched to a customer
type IncomingTransfer struct {
	CustomerID        uuid.UUID         `json:"customer_id"`
	Amount            valueobject.Money `json:"amount"`
	TransferReference string            `json:"transfer_reference"`
}

// ReversalResult describes what a payment reversal undid
type ReversalResult struct {
	PaymentID        uuid.UUID   `json:"payment_id"`
	ReversedInvoices []uuid.UUID `json:"reversed_invoices"`
	ExpiredCredits   []uuid.UUID `json:"expired_credits"`
}

// RecordCashPayment stores an unallocated cash payment
func (s *PaymentIntakeService) RecordCashPayment(ctx context.Context, req RecordCashPaymentRequest) (*billing.PaymentRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "intake", "record_cash")
	defer span.End()

	payment, err := billing.NewCashPayment(req.CustomerID, req.Amount, req.ReceivedBy, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return shared.WrapPersistence("save payment", s.repos.Payments.Save(ctx, payment))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("cash payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("customer_id", payment.CustomerID.String()),
		zap.String("amount", payment.Amount.String()))
	return payment, nil
}

// RecordIncomingTransfer stores a resolved bank transfer. A transfer reference
// seen before returns the existing payment with created=false.
func (s *PaymentIntakeService) RecordIncomingTransfer(ctx context.Context, in IncomingTransfer) (payment *billing.PaymentRecord, created bool, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "intake", "record_transfer")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, in.CustomerID.String(),
		"transfer_reference", in.TransferReference,
	)

	candidate, err := billing.NewTransferPayment(in.CustomerID, in.Amount, in.TransferReference, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, false, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.repos.Payments.FindBySourceReference(ctx, billing.PaymentSourceExternalTransfer, in.TransferReference)
		switch {
		case err == nil:
			if existing.CustomerID != in.CustomerID {
				return shared.NewCrossTenantError("Transfer %s is already recorded for another customer", in.TransferReference)
			}
			payment = existing
			return nil
		case !errors.Is(err, shared.ErrNotFound):
			return shared.WrapPersistence("find transfer payment", err)
		}

		if err := s.repos.Payments.Save(ctx, candidate); err != nil {
			return shared.WrapPersistence("save payment", err)
		}
		payment, created = candidate, true
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, false, err
	}

	s.logger.Info("incoming transfer recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("transfer_reference", in.TransferReference),
		zap.Bool("created", created))
	return payment, created, nil
}

// invoiceAmount is money a payment placed on one invoice
type invoiceAmount struct {
	invoiceID uuid.UUID
	amount    valueobject.Money
}

// ReversePayment undoes a payment's allocations and direct invoice
// payments, withdraws the credit made
// from its excess and soft-deletes it. Fails if that credit was already spent.
func (s *PaymentIntakeService) ReversePayment(ctx context.Context, paymentID uuid.UUID) (*ReversalResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "intake", "reverse_payment")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, paymentID.String())

	result := &ReversalResult{PaymentID: paymentID}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := s.now()

		payment, err := s.repos.Payments.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return lookupErr(err, "payment", paymentID)
		}

		credits, err := s.repos.Credits.FindBySourcePaymentForUpdate(ctx, paymentID)
		if err != nil {
			return shared.WrapPersistence("lock excess credits", err)
		}
		for i := range credits {
			if err := credits[i].Expire(now); err != nil {
				return err
			}
			if err := s.repos.Credits.Save(ctx, &credits[i]); err != nil {
				return shared.WrapPersistence("save credit", err)
			}
			result.ExpiredCredits = append(result.ExpiredCredits, credits[i].ID)
		}

		allocations, err := s.repos.Allocations.FindByPayment(ctx, paymentID)
		if err != nil {
			return shared.WrapPersistence("list allocations", err)
		}
		links, err := s.repos.InvoicePayments.FindByPayment(ctx, paymentID)
		if err != nil {
			return shared.WrapPersistence("list invoice payments", err)
		}
		applied := append(
			lo.Map(allocations, func(a billing.Allocation, _ int) invoiceAmount {
				return invoiceAmount{invoiceID: a.InvoiceID, amount: a.AllocatedAmount}
			}),
			lo.Map(links, func(l billing.InvoicePayment, _ int) invoiceAmount {
				return invoiceAmount{invoiceID: l.InvoiceID, amount: l.Amount}
			})...,
		)
		invoiceIDs := lo.Uniq(lo.Map(applied, func(a invoiceAmount, _ int) uuid.UUID { return a.invoiceID }))
		invoices, err := s.repos.Invoices.FindByIDsForUpdate(ctx, invoiceIDs)
		if err != nil {
			return shared.WrapPersistence("lock invoices", err)
		}
		byID := lo.KeyBy(invoices, func(inv billing.Invoice) uuid.UUID { return inv.ID })

		reversed := make(map[uuid.UUID]billing.PaymentStatus)
		for _, a := range applied {
			invoice, ok := byID[a.invoiceID]
			if !ok {
				continue
			}
			if err := invoice.ReversePayment(a.amount, now); err != nil {
				return err
			}
			byID[a.invoiceID] = invoice
			reversed[invoice.ID] = invoice.PaymentStatus
		}
		for _, id := range invoiceIDs {
			invoice, ok := byID[id]
			if !ok {
				continue
			}
			if err := s.repos.Invoices.Save(ctx, &invoice); err != nil {
				return shared.WrapPersistence("save invoice", err)
			}
			result.ReversedInvoices = append(result.ReversedInvoices, id)
		}

		if err := s.repos.Allocations.SoftDeleteByPayment(ctx, paymentID); err != nil {
			return shared.WrapPersistence("delete allocations", err)
		}
		if err := s.repos.InvoicePayments.SoftDeleteByPayment(ctx, paymentID); err != nil {
			return shared.WrapPersistence("delete invoice payments", err)
		}
		if err := payment.Reverse(now); err != nil {
			return err
		}
		if err := s.repos.Payments.Save(ctx, payment); err != nil {
			return shared.WrapPersistence("save payment", err)
		}

		if s.orders != nil && len(reversed) > 0 {
			groups := lo.GroupBy(result.ReversedInvoices, func(id uuid.UUID) billing.PaymentStatus { return reversed[id] })
			for status, ids := range groups {
				if err := s.orders.SetPaymentStatus(ctx, status, ids); err != nil {
					return shared.WrapPersistence("sync order payment status", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("payment reversed",
		zap.String("payment_id", paymentID.String()),
		zap.Int("invoices", len(result.ReversedInvoices)),
		zap.Int("expired_credits", len(result.ExpiredCredits)))
	return result, nil
}
