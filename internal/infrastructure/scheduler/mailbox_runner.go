package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	appbilling "github.com/freshtable/billing/internal/application/billing"
	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MailboxPoller yields bank transfers already matched to a customer
type MailboxPoller interface {
	// PendingTransfers returns up to limit transfers without a payment record
	PendingTransfers(ctx context.Context, limit int) ([]billing.PendingTransfer, error)

	// LinkPayment records the payment a transfer was turned into
	LinkPayment(ctx context.Context, reference string, paymentID uuid.UUID) error
}

// TransferRecorder turns a transfer into a payment record, idempotently on its reference
type TransferRecorder interface {
	RecordIncomingTransfer(ctx context.Context, in appbilling.IncomingTransfer) (*billing.PaymentRecord, bool, error)
}

// Ticker is the part of time.Ticker the runner uses
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// MailboxRunnerConfig holds configuration for the mailbox runner
type MailboxRunnerConfig struct {
	// Enabled determines if the runner polls at all
	Enabled bool
	// PollInterval is the time between two polls
	PollInterval time.Duration
	// BatchSize caps the transfers handled per poll
	BatchSize int
	// PollTimeout bounds one poll
	PollTimeout time.Duration
}

// DefaultMailboxRunnerConfig returns default configuration
func DefaultMailboxRunnerConfig() MailboxRunnerConfig {
	return MailboxRunnerConfig{
		Enabled:      true,
		PollInterval: 5 * time.Minute,
		BatchSize:    50,
		PollTimeout:  2 * time.Minute,
	}
}

// Validate validates the configuration
func (c *MailboxRunnerConfig) Validate() error {
	switch {
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	case c.PollTimeout <= 0:
		return fmt.Errorf("%w: poll timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// PollStats summarizes one poll
type PollStats struct {
	Fetched   int
	Recorded  int
	Duplicate int
	Failed    int
}

// MailboxRunner periodically records pending bank transfers as payments
type MailboxRunner struct {
	poller    MailboxPoller
	recorder  TransferRecorder
	logger    *zap.Logger
	config    MailboxRunnerConfig
	newTicker func(time.Duration) Ticker

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// MailboxRunnerOption configures a MailboxRunner
type MailboxRunnerOption func(*MailboxRunner)

// WithTicker replaces the ticker source
func WithTicker(newTicker func(time.Duration) Ticker) MailboxRunnerOption {
	return func(r *MailboxRunner) {
		r.newTicker = newTicker
	}
}

// NewMailboxRunner creates a new mailbox runner
func NewMailboxRunner(
	poller MailboxPoller,
	recorder TransferRecorder,
	logger *zap.Logger,
	config MailboxRunnerConfig,
	opts ...MailboxRunnerOption,
) (*MailboxRunner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	r := &MailboxRunner{
		poller:    poller,
		recorder:  recorder,
		logger:    logger.Named("scheduler.mailbox"),
		config:    config,
		newTicker: NewTimeTicker,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start starts polling in the background
func (r *MailboxRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return nil
	}
	if !r.config.Enabled {
		r.mu.Unlock()
		r.logger.Info("Mailbox runner is disabled")
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	r.isRunning = true
	r.cancel = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	ticker := r.newTicker(r.config.PollInterval)
	go r.loop(ctx, ticker)

	r.logger.Info("Mailbox runner started",
		zap.Duration("poll_interval", r.config.PollInterval),
		zap.Int("batch_size", r.config.BatchSize),
	)
	return nil
}

// Stop gracefully stops the runner
func (r *MailboxRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Mailbox runner stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Mailbox runner stop timed out")
		return fmt.Errorf("%w: %w", ErrStopTimeout, ctx.Err())
	}
}

// IsRunning reports whether the background loop is active
func (r *MailboxRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRunning
}

func (r *MailboxRunner) loop(ctx context.Context, ticker Ticker) {
	defer r.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			pollCtx, cancel := context.WithTimeout(ctx, r.config.PollTimeout)
			if _, err := r.RunOnce(pollCtx); err != nil {
				r.logger.Error("Mailbox poll failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// RunOnce records one batch of pending transfers. A transfer that fails is
// logged and left pending for the next poll.
func (r *MailboxRunner) RunOnce(ctx context.Context) (PollStats, error) {
	var stats PollStats

	transfers, err := r.poller.PendingTransfers(ctx, r.config.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Fetched = len(transfers)

	for _, t := range transfers {
		payment, created, err := r.recorder.RecordIncomingTransfer(ctx, appbilling.IncomingTransfer{
			CustomerID:        t.CustomerID,
			Amount:            t.Amount,
			TransferReference: t.Reference,
		})
		if err != nil {
			stats.Failed++
			r.logger.Warn("Failed to record bank transfer",
				zap.String("transfer_reference", t.Reference),
				zap.String("customer_id", t.CustomerID.String()),
				zap.Error(err),
			)
			continue
		}
		if err := r.poller.LinkPayment(ctx, t.Reference, payment.ID); err != nil {
			stats.Failed++
			r.logger.Warn("Failed to link bank transfer to payment",
				zap.String("transfer_reference", t.Reference),
				zap.String("payment_id", payment.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if created {
			stats.Recorded++
		} else {
			stats.Duplicate++
		}
	}

	if stats.Fetched > 0 {
		r.logger.Info("Mailbox poll completed",
			zap.Int("fetched", stats.Fetched),
			zap.Int("recorded", stats.Recorded),
			zap.Int("duplicate", stats.Duplicate),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats, nil
}
