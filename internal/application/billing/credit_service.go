package billing

import (
	"context"
	"slices"
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/freshtable/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// CreditService applies a customer's stored credit to invoices, oldest credit first
type CreditService struct {
	tx     TxManager
	repos  Repositories
	ledger *CreditLedger
	orders OrderStatusSync
	logger *zap.Logger
	now    func() time.Time
}

// NewCreditService creates a new CreditService
func NewCreditService(
	tx TxManager,
	repos Repositories,
	ledger *CreditLedger,
	orders OrderStatusSync,
	logger *zap.Logger,
	opts ...Option,
) *CreditService {
	o := buildOptions(opts)
	return &CreditService{
		tx:     tx,
		repos:  repos,
		ledger: ledger,
		orders: orders,
		logger: logger.Named("billing.credit"),
		now:    o.now,
	}
}

// CreditAllocationRequest asks for an amount of credit to go to one invoice
type CreditAllocationRequest struct {
	InvoiceID uuid.UUID         `json:"invoice_id"`
	Amount    valueobject.Money `json:"amount"`
}

// CreditDraw is the part of an application taken from one credit
type CreditDraw struct {
	CreditID uuid.UUID         `json:"credit_id"`
	Amount   valueobject.Money `json:"amount"`
}

// CreditApplicationLine is the outcome for one invoice
type CreditApplicationLine struct {
	InvoiceID       uuid.UUID             `json:"invoice_id"`
	AmountApplied   valueobject.Money     `json:"amount_applied"`
	BalanceDue      valueobject.Money     `json:"balance_due"`
	ResultingStatus billing.PaymentStatus `json:"resulting_status"`
	Draws           []CreditDraw          `json:"draws"`
}

// ApplyCreditResult summarizes one ApplyCredit call
type ApplyCreditResult struct {
	CustomerID      uuid.UUID               `json:"customer_id"`
	Lines           []CreditApplicationLine `json:"lines"`
	TotalApplied    valueobject.Money       `json:"total_applied"`
	RemainingCredit valueobject.Money       `json:"remaining_credit"`
}

// CustomerCreditBalance lists the credit a customer can still spend
type CustomerCreditBalance struct {
	CustomerID     uuid.UUID         `json:"customer_id"`
	TotalAvailable valueobject.Money `json:"total_available"`
	Credits        []billing.Credit  `json:"credits"`
}

// ApplyCredit pays the requested invoices out of the customer's credit pool.
// Any invoice belonging to another customer aborts the whole batch.
func (s *CreditService) ApplyCredit(ctx context.Context, customerID uuid.UUID, requests []CreditAllocationRequest) (*ApplyCreditResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "apply_credit")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, customerID.String(),
		telemetry.SpanAttrInvoiceCount, len(requests),
	)

	requested, err := validateCreditRequests(customerID, requests)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrAmount, requested.String())

	var result *ApplyCreditResult
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.apply(ctx, customerID, requests, requested)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Info("credit application rejected",
			zap.String("customer_id", customerID.String()),
			zap.String("requested", requested.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("credit applied",
		zap.String("customer_id", customerID.String()),
		zap.String("total_applied", result.TotalApplied.String()),
		zap.String("remaining_credit", result.RemainingCredit.String()))
	return result, nil
}

func validateCreditRequests(customerID uuid.UUID, requests []CreditAllocationRequest) (valueobject.Money, error) {
	if customerID == uuid.Nil {
		return valueobject.Money{}, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	for _, r := range requests {
		if r.InvoiceID == uuid.Nil {
			return valueobject.Money{}, shared.NewValidationError("INVALID_INVOICE", "Invoice ID cannot be empty")
		}
		if r.Amount.IsNegative() {
			return valueobject.Money{}, shared.NewValidationError("INVALID_AMOUNT",
				"Credit amount for invoice %s cannot be negative, got %s", r.InvoiceID, r.Amount.Round2())
		}
	}
	requested := valueobject.Sum(lo.Map(requests, func(r CreditAllocationRequest, _ int) valueobject.Money {
		return r.Amount
	})...).Round2()
	if !requested.IsPositive() {
		return valueobject.Money{}, shared.NewValidationError("INVALID_AMOUNT",
			"Requested credit total must be positive, got %s", requested)
	}
	return requested, nil
}

func (s *CreditService) apply(ctx context.Context, customerID uuid.UUID, requests []CreditAllocationRequest, requested valueobject.Money) (*ApplyCreditResult, error) {
	now := s.now()

	pool, err := s.repos.Credits.FindAvailableByCustomerForUpdate(ctx, customerID)
	if err != nil {
		return nil, shared.WrapPersistence("lock credit pool", err)
	}
	available := valueobject.Sum(lo.Map(pool, func(c billing.Credit, _ int) valueobject.Money {
		return c.CurrentBalance
	})...).Round2()
	if available.LessThan(requested) {
		return nil, shared.NewInsufficientFundsError(billing.CodeInsufficientCredit,
			"Insufficient credit: available %s, requested %s", available, requested)
	}

	invoiceIDs := lo.Uniq(lo.Map(requests, func(r CreditAllocationRequest, _ int) uuid.UUID { return r.InvoiceID }))
	invoices, err := s.repos.Invoices.FindByIDsForUpdate(ctx, invoiceIDs)
	if err != nil {
		return nil, shared.WrapPersistence("lock invoices", err)
	}
	byID := make(map[uuid.UUID]*billing.Invoice, len(invoices))
	for i := range invoices {
		byID[invoices[i].ID] = &invoices[i]
	}
	for _, id := range invoiceIDs {
		invoice, ok := byID[id]
		if !ok {
			return nil, shared.NewNotFoundError("invoice", id)
		}
		if invoice.CustomerID != customerID {
			return nil, shared.NewCrossTenantError("Invoice %s does not belong to customer %s", id, customerID)
		}
	}

	result := &ApplyCreditResult{
		CustomerID:   customerID,
		TotalApplied: valueobject.Zero(),
	}
	touched := make(map[uuid.UUID]*billing.Invoice)
	var touchedOrder []uuid.UUID

	for _, req := range requests {
		invoice := byID[req.InvoiceID]
		toApply := valueobject.Min(req.Amount, invoice.BalanceDue).Round2()
		if !toApply.IsPositive() {
			continue
		}

		draws, err := s.drawFIFO(ctx, pool, toApply, invoice.ID)
		if err != nil {
			return nil, err
		}

		app, err := invoice.ApplyPayment(toApply, now)
		if err != nil {
			return nil, err
		}
		if err := s.repos.Invoices.Save(ctx, invoice); err != nil {
			return nil, shared.WrapPersistence("save invoice", err)
		}

		if _, ok := touched[invoice.ID]; !ok {
			touchedOrder = append(touchedOrder, invoice.ID)
		}
		touched[invoice.ID] = invoice
		result.Lines = append(result.Lines, CreditApplicationLine{
			InvoiceID:       invoice.ID,
			AmountApplied:   app.Applied,
			BalanceDue:      app.BalanceAfter,
			ResultingStatus: app.Status,
			Draws:           draws,
		})
		result.TotalApplied = result.TotalApplied.Add(app.Applied)
	}

	if err := s.syncOrderStatuses(ctx, touchedOrder, touched); err != nil {
		return nil, err
	}

	result.TotalApplied = result.TotalApplied.Round2()
	result.RemainingCredit = available.Subtract(result.TotalApplied).Round2()
	return result, nil
}

// drawFIFO takes amount from the pool, exhausting older credits first.
// The pool is ordered oldest first and already locked by the caller.
func (s *CreditService) drawFIFO(ctx context.Context, pool []billing.Credit, amount valueobject.Money, invoiceID uuid.UUID) ([]CreditDraw, error) {
	remaining := amount
	var draws []CreditDraw

	for i := range pool {
		if !remaining.IsPositive() {
			break
		}
		credit := &pool[i]
		if !credit.IsDrawable() {
			continue
		}
		draw := valueobject.Min(remaining, credit.CurrentBalance).Round2()
		if !draw.IsPositive() {
			continue
		}
		if _, err := s.ledger.Draw(ctx, credit, draw, invoiceID); err != nil {
			return nil, err
		}
		draws = append(draws, CreditDraw{CreditID: credit.ID, Amount: draw})
		remaining = remaining.Subtract(draw).Round2()
	}

	if remaining.ExceedsEpsilon() {
		return nil, shared.NewInsufficientFundsError(billing.CodeInsufficientCredit,
			"Credit pool ran out with %s of %s still to draw for invoice %s", remaining, amount, invoiceID)
	}
	return draws, nil
}

// syncOrderStatuses issues one downstream update per resulting status
func (s *CreditService) syncOrderStatuses(ctx context.Context, order []uuid.UUID, touched map[uuid.UUID]*billing.Invoice) error {
	if s.orders == nil || len(order) == 0 {
		return nil
	}
	groups := lo.GroupBy(order, func(id uuid.UUID) billing.PaymentStatus {
		return touched[id].PaymentStatus
	})
	statuses := lo.Keys(groups)
	slices.Sort(statuses)
	for _, status := range statuses {
		if err := s.orders.SetPaymentStatus(ctx, status, groups[status]); err != nil {
			return shared.WrapPersistence("sync order payment status", err)
		}
	}
	return nil
}

// GetCustomerCreditBalance lists a customer's available credits oldest first
func (s *CreditService) GetCustomerCreditBalance(ctx context.Context, customerID uuid.UUID) (*CustomerCreditBalance, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "get_customer_balance")
	defer span.End()

	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}

	credits, err := s.repos.Credits.FindAvailableByCustomer(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, shared.WrapPersistence("list credits", err)
	}
	total := valueobject.Sum(lo.Map(credits, func(c billing.Credit, _ int) valueobject.Money {
		return c.CurrentBalance
	})...).Round2()

	return &CustomerCreditBalance{
		CustomerID:     customerID,
		TotalAvailable: total,
		Credits:        credits,
	}, nil
}

// AuditCredit verifies a credit's balance against its usage and refunds
func (s *CreditService) AuditCredit(ctx context.Context, creditID uuid.UUID) (*CreditAudit, error) {
	return s.ledger.Audit(ctx, creditID)
}
