package billing

import (
	"context"
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/freshtable/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Reasons an invoice in an allocation request received nothing
const (
	SkipReasonNotFound        = "not_found"
	SkipReasonOtherCustomer   = "other_customer"
	SkipReasonNotPayable      = "not_payable"
	SkipReasonDuplicate       = "duplicate"
	SkipReasonPaymentConsumed = "payment_consumed"
)

// AllocationService distributes a payment across caller-ordered invoices
type AllocationService struct {
	tx        TxManager
	repos     Repositories
	ledger    *CreditLedger
	transfers TransferMarker
	notifier  notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	tx TxManager,
	repos Repositories,
	ledger *CreditLedger,
	transfers TransferMarker,
	sink NotificationSink,
	logger *zap.Logger,
	opts ...Option,
) *AllocationService {
	o := buildOptions(opts)
	logger = logger.Named("billing.allocation")
	return &AllocationService{
		tx:        tx,
		repos:     repos,
		ledger:    ledger,
		transfers: transfers,
		notifier:  newNotifier(sink, logger),
		logger:    logger,
		now:       o.now,
	}
}

// AllocationLine is the outcome for one invoice that received money
type AllocationLine struct {
	AllocationID    uuid.UUID             `json:"allocation_id"`
	InvoiceID       uuid.UUID             `json:"invoice_id"`
	AmountApplied   valueobject.Money     `json:"amount_applied"`
	BalanceDue      valueobject.Money     `json:"balance_due"`
	ResultingStatus billing.PaymentStatus `json:"resulting_status"`
}

// SkippedInvoice reports a requested invoice that received nothing
type SkippedInvoice struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Reason    string    `json:"reason"`
}

// AllocationResult summarizes one AllocatePayment call
type AllocationResult struct {
	PaymentID        uuid.UUID                `json:"payment_id"`
	Lines            []AllocationLine         `json:"lines"`
	TotalApplied     valueobject.Money        `json:"total_applied"`
	ExcessAmount     valueobject.Money        `json:"excess_amount"`
	CreditID         *uuid.UUID               `json:"credit_id,omitempty"`
	AllocationStatus billing.AllocationStatus `json:"allocation_status"`
	Skipped          []SkippedInvoice         `json:"skipped"`
}

// AllocatePayment applies a payment to invoices in the order given.
// Ineligible invoices are skipped and reported; leftover money becomes credit.
func (s *AllocationService) AllocatePayment(ctx context.Context, paymentID uuid.UUID, invoiceIDs []uuid.UUID) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "allocate_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, paymentID.String(),
		telemetry.SpanAttrInvoiceCount, len(invoiceIDs),
	)

	if paymentID == uuid.Nil {
		err := shared.NewValidationError("INVALID_PAYMENT", "Payment ID cannot be empty")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *AllocationResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.allocate(ctx, paymentID, invoiceIDs)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Info("allocation rejected",
			zap.String("payment_id", paymentID.String()),
			zap.Error(err))
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, result.TotalApplied.String(),
		"excess_amount", result.ExcessAmount.String(),
		"skipped_count", len(result.Skipped),
	)
	s.logger.Info("payment allocated",
		zap.String("payment_id", paymentID.String()),
		zap.String("total_applied", result.TotalApplied.String()),
		zap.String("excess", result.ExcessAmount.String()),
		zap.Int("invoices", len(result.Lines)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (s *AllocationService) allocate(ctx context.Context, paymentID uuid.UUID, invoiceIDs []uuid.UUID) (*AllocationResult, error) {
	now := s.now()

	payment, err := s.repos.Payments.FindByIDForUpdate(ctx, paymentID)
	if err != nil {
		return nil, lookupErr(err, "payment", paymentID)
	}
	if err := payment.CheckAllocatable(); err != nil {
		return nil, err
	}

	invoices, err := s.repos.Invoices.FindByIDsForUpdate(ctx, lo.Uniq(invoiceIDs))
	if err != nil {
		return nil, shared.WrapPersistence("lock invoices", err)
	}
	byID := make(map[uuid.UUID]*billing.Invoice, len(invoices))
	for i := range invoices {
		byID[invoices[i].ID] = &invoices[i]
	}

	result := &AllocationResult{
		PaymentID:    paymentID,
		TotalApplied: valueobject.Zero(),
		ExcessAmount: valueobject.Zero(),
	}
	skip := func(id uuid.UUID, reason string) {
		result.Skipped = append(result.Skipped, SkippedInvoice{InvoiceID: id, Reason: reason})
	}

	remaining := payment.Remaining()
	seen := make(map[uuid.UUID]bool, len(invoiceIDs))
	eligible := 0
	var allocations []*billing.Allocation

	for idx, id := range invoiceIDs {
		if seen[id] {
			skip(id, SkipReasonDuplicate)
			continue
		}
		seen[id] = true

		invoice, ok := byID[id]
		switch {
		case !ok:
			skip(id, SkipReasonNotFound)
			continue
		case invoice.CustomerID != payment.CustomerID:
			skip(id, SkipReasonOtherCustomer)
			continue
		case !invoice.IsPayable():
			skip(id, SkipReasonNotPayable)
			continue
		}
		eligible++

		if !remaining.IsPositive() {
			skip(id, SkipReasonPaymentConsumed)
			continue
		}

		apply := valueobject.Min(remaining, invoice.BalanceDue).Round2()
		if !apply.IsPositive() {
			continue
		}

		app, err := invoice.ApplyPayment(apply, now)
		if err != nil {
			return nil, err
		}
		if err := s.repos.Invoices.Save(ctx, invoice); err != nil {
			return nil, shared.WrapPersistence("save invoice", err)
		}

		allocation := billing.NewAllocation(payment, invoice, idx, app, now)
		allocations = append(allocations, allocation)
		result.Lines = append(result.Lines, AllocationLine{
			AllocationID:    allocation.ID,
			InvoiceID:       invoice.ID,
			AmountApplied:   app.Applied,
			BalanceDue:      app.BalanceAfter,
			ResultingStatus: app.Status,
		})
		result.TotalApplied = result.TotalApplied.Add(app.Applied)
		remaining = remaining.Subtract(app.Applied).Round2()
	}

	if eligible == 0 {
		return nil, shared.NewValidationError(shared.ErrNoEligibleInvoices.Code,
			"None of the %d requested invoices can receive payment %s", len(invoiceIDs), paymentID)
	}

	if len(allocations) > 0 {
		if err := s.repos.Allocations.Create(ctx, allocations); err != nil {
			return nil, shared.WrapPersistence("create allocations", err)
		}
	}

	result.TotalApplied = result.TotalApplied.Round2()
	excess := payment.CompleteAllocation(result.TotalApplied, now)
	result.AllocationStatus = payment.AllocationStatus
	result.ExcessAmount = excess

	var credit *billing.Credit
	if excess.ExceedsEpsilon() {
		credit, err = s.ledger.Create(ctx, payment.CustomerID, &payment.ID, excess)
		if err != nil {
			return nil, err
		}
		result.CreditID = &credit.ID
	}

	if err := s.repos.Payments.Save(ctx, payment); err != nil {
		return nil, shared.WrapPersistence("save payment", err)
	}

	if payment.IsExternalTransfer() && s.transfers != nil {
		if err := s.transfers.MarkAllocated(ctx, payment.SourceReference); err != nil {
			return nil, shared.WrapPersistence("mark transfer allocated", err)
		}
	}

	if credit != nil {
		s.notifier.notify(ctx, billing.ExcessPaymentNotification(payment, credit, now))
	}
	return result, nil
}
