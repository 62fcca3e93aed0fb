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
	"go.uber.org/zap"
)

// CodeRefundExceedsPayment is raised when a payment refund is larger than the payment
const CodeRefundExceedsPayment = "REFUND_EXCEEDS_PAYMENT"

// RefundService runs refund requests through pending -> completed | cancelled
type RefundService struct {
	tx       TxManager
	repos    Repositories
	ledger   *CreditLedger
	notifier notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewRefundService creates a new RefundService
func NewRefundService(
	tx TxManager,
	repos Repositories,
	ledger *CreditLedger,
	sink NotificationSink,
	logger *zap.Logger,
	opts ...Option,
) *RefundService {
	o := buildOptions(opts)
	logger = logger.Named("billing.refund")
	return &RefundService{
		tx:       tx,
		repos:    repos,
		ledger:   ledger,
		notifier: newNotifier(sink, logger),
		logger:   logger,
		now:      o.now,
	}
}

// CreateRefundRequest holds the inputs of a new refund
type CreateRefundRequest struct {
	SourceType      billing.RefundSourceType `json:"source_type"`
	CustomerID      uuid.UUID                `json:"customer_id"`
	CreditID        *uuid.UUID               `json:"credit_id,omitempty"`
	PaymentRecordID *uuid.UUID               `json:"payment_record_id,omitempty"`
	Amount          valueobject.Money        `json:"amount"`
	Method          string                   `json:"method"`
	Reason          string                   `json:"reason"`
	RequestedBy     string                   `json:"requested_by"`
}

// CreateRefund records a pending refund after checking its source can cover it
func (s *RefundService) CreateRefund(ctx context.Context, req CreateRefundRequest) (*billing.Refund, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", "create")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		telemetry.SpanAttrSourceType, string(req.SourceType),
		telemetry.SpanAttrAmount, req.Amount.Round2().String(),
	)

	now := s.now()
	refund, err := billing.NewRefund(billing.NewRefundParams{
		SourceType:      req.SourceType,
		CreditID:        req.CreditID,
		PaymentRecordID: req.PaymentRecordID,
		CustomerID:      req.CustomerID,
		Amount:          req.Amount,
		Method:          req.Method,
		Reason:          req.Reason,
		RequestedBy:     req.RequestedBy,
	}, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkSource(ctx, refund); err != nil {
			return err
		}
		if err := s.repos.Refunds.Save(ctx, refund); err != nil {
			return shared.WrapPersistence("save refund", err)
		}
		s.notifier.notify(ctx, billing.RefundRequestNotification(refund, now))
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrRefundID, refund.ID.String())
	s.logger.Info("refund requested",
		zap.String("refund_id", refund.ID.String()),
		zap.String("source_type", string(refund.SourceType)),
		zap.String("amount", refund.RefundAmount.String()))
	return refund, nil
}

func (s *RefundService) checkSource(ctx context.Context, refund *billing.Refund) error {
	switch refund.SourceType {
	case billing.RefundSourceCredit:
		credit, err := s.repos.Credits.FindByIDForUpdate(ctx, *refund.CreditID)
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewInsufficientFundsError(billing.CodeInsufficientCreditBalance,
				"Credit %s does not exist", *refund.CreditID)
		}
		if err != nil {
			return shared.WrapPersistence("load credit", err)
		}
		if credit.CustomerID != refund.CustomerID {
			return shared.NewCrossTenantError("Credit %s does not belong to customer %s", credit.ID, refund.CustomerID)
		}
		return credit.CheckRefundable(refund.RefundAmount)

	case billing.RefundSourcePayment:
		payment, err := s.repos.Payments.FindByID(ctx, *refund.PaymentRecordID)
		if err != nil {
			return lookupErr(err, "payment", *refund.PaymentRecordID)
		}
		if payment.CustomerID != refund.CustomerID {
			return shared.NewCrossTenantError("Payment %s does not belong to customer %s", payment.ID, refund.CustomerID)
		}
		if refund.RefundAmount.GreaterThan(payment.Amount) {
			return shared.NewInsufficientFundsError(CodeRefundExceedsPayment,
				"Refund amount %s exceeds payment amount %s", refund.RefundAmount, payment.Amount)
		}
	}
	return nil
}

// ApproveRefund completes a pending refund. A credit-sourced refund draws the
// credit down here, on the single transition into COMPLETED.
func (s *RefundService) ApproveRefund(ctx context.Context, refundID uuid.UUID, approvedBy, referenceNumber string) (*billing.Refund, error) {
	return s.transition(ctx, "approve", refundID, func(ctx context.Context, refund *billing.Refund, now time.Time) error {
		if err := refund.Approve(approvedBy, referenceNumber, now); err != nil {
			return err
		}
		if refund.DeductsCredit() {
			if _, err := s.ledger.RefundDeduct(ctx, *refund.CreditID, refund.RefundAmount); err != nil {
				return err
			}
		}
		return nil
	}, func(ctx context.Context, refund *billing.Refund, now time.Time) {
		s.notifier.dismiss(ctx, billing.NotificationRefundRequest, refund.ID)
		s.notifier.notify(ctx, billing.RefundCompletedNotification(refund, now))
	})
}

// CancelRefund withdraws a pending refund without moving money
func (s *RefundService) CancelRefund(ctx context.Context, refundID uuid.UUID) (*billing.Refund, error) {
	return s.transition(ctx, "cancel", refundID, func(_ context.Context, refund *billing.Refund, now time.Time) error {
		return refund.Cancel(now)
	}, func(ctx context.Context, refund *billing.Refund, _ time.Time) {
		s.notifier.dismiss(ctx, billing.NotificationRefundRequest, refund.ID)
	})
}

// DeleteRefund soft-deletes a refund that is still pending
func (s *RefundService) DeleteRefund(ctx context.Context, refundID uuid.UUID) (*billing.Refund, error) {
	return s.transition(ctx, "delete", refundID, func(_ context.Context, refund *billing.Refund, now time.Time) error {
		return refund.Delete(now)
	}, func(ctx context.Context, refund *billing.Refund, _ time.Time) {
		s.notifier.dismiss(ctx, billing.NotificationRefundRequest, refund.ID)
	})
}

// GetRefund returns an active refund
func (s *RefundService) GetRefund(ctx context.Context, refundID uuid.UUID) (*billing.Refund, error) {
	refund, err := s.repos.Refunds.FindByID(ctx, refundID)
	if err != nil {
		return nil, lookupErr(err, "refund", refundID)
	}
	return refund, nil
}

// ListCustomerRefunds returns a customer's active refunds, newest first
func (s *RefundService) ListCustomerRefunds(ctx context.Context, customerID uuid.UUID) ([]billing.Refund, error) {
	refunds, err := s.repos.Refunds.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, shared.WrapPersistence("list refunds", err)
	}
	return refunds, nil
}

type refundMutation func(ctx context.Context, refund *billing.Refund, now time.Time) error

type refundFollowUp func(ctx context.Context, refund *billing.Refund, now time.Time)

// transition locks a refund, applies one state change and persists it
func (s *RefundService) transition(ctx context.Context, action string, refundID uuid.UUID, mutate refundMutation, followUp refundFollowUp) (*billing.Refund, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", action)
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrRefundID, refundID.String())

	var refund *billing.Refund
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := s.now()

		var err error
		refund, err = s.repos.Refunds.FindByIDForUpdate(ctx, refundID)
		if err != nil {
			return lookupErr(err, "refund", refundID)
		}
		if err := mutate(ctx, refund, now); err != nil {
			return err
		}
		if err := s.repos.Refunds.Save(ctx, refund); err != nil {
			return shared.WrapPersistence("save refund", err)
		}
		followUp(ctx, refund, now)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Info("refund transition rejected",
			zap.String("action", action),
			zap.String("refund_id", refundID.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("refund updated",
		zap.String("action", action),
		zap.String("refund_id", refund.ID.String()),
		zap.String("status", string(refund.Status)))
	return refund, nil
}
