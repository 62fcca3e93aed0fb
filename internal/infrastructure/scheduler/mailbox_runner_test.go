package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appbilling "github.com/freshtable/billing/internal/application/billing"
	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

type mockPoller struct {
	mock.Mock
}

func (m *mockPoller) PendingTransfers(ctx context.Context, limit int) ([]billing.PendingTransfer, error) {
	args := m.Called(ctx, limit)
	transfers, _ := args.Get(0).([]billing.PendingTransfer)
	return transfers, args.Error(1)
}

func (m *mockPoller) LinkPayment(ctx context.Context, reference string, paymentID uuid.UUID) error {
	args := m.Called(ctx, reference, paymentID)
	return args.Error(0)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordIncomingTransfer(ctx context.Context, in appbilling.IncomingTransfer) (*billing.PaymentRecord, bool, error) {
	args := m.Called(ctx, in)
	payment, _ := args.Get(0).(*billing.PaymentRecord)
	return payment, args.Bool(1), args.Error(2)
}

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

func testConfig() MailboxRunnerConfig {
	cfg := DefaultMailboxRunnerConfig()
	cfg.BatchSize = 10
	return cfg
}

func pending(reference string) billing.PendingTransfer {
	return billing.PendingTransfer{
		Reference:  reference,
		CustomerID: uuid.New(),
		Amount:     valueobject.MustMoney("25.00"),
		ReceivedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func paymentFor(t billing.PendingTransfer) *billing.PaymentRecord {
	return &billing.PaymentRecord{
		BaseEntity:      shared.BaseEntity{ID: uuid.New()},
		CustomerID:      t.CustomerID,
		Amount:          t.Amount,
		Source:          billing.PaymentSourceExternalTransfer,
		SourceReference: t.Reference,
	}
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestMailboxRunnerConfig_Validate(t *testing.T) {
	cfg := DefaultMailboxRunnerConfig()
	assert.NoError(t, cfg.Validate())

	cfg.BatchSize = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultMailboxRunnerConfig()
	cfg.PollInterval = 0
	_, err := NewMailboxRunner(new(mockPoller), new(mockRecorder), zap.NewNop(), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// ---------------------------------------------------------------------------
// RunOnce Tests
// ---------------------------------------------------------------------------

func TestMailboxRunner_RunOnce(t *testing.T) {
	ctx := context.Background()
	fresh := pending("BANK-1")
	seen := pending("BANK-2")
	rejected := pending("BANK-3")

	poller := new(mockPoller)
	poller.On("PendingTransfers", mock.Anything, 10).Return([]billing.PendingTransfer{fresh, seen, rejected}, nil)

	freshPayment, seenPayment := paymentFor(fresh), paymentFor(seen)
	recorder := new(mockRecorder)
	recorder.On("RecordIncomingTransfer", mock.Anything, appbilling.IncomingTransfer{
		CustomerID: fresh.CustomerID, Amount: fresh.Amount, TransferReference: "BANK-1",
	}).Return(freshPayment, true, nil)
	recorder.On("RecordIncomingTransfer", mock.Anything, appbilling.IncomingTransfer{
		CustomerID: seen.CustomerID, Amount: seen.Amount, TransferReference: "BANK-2",
	}).Return(seenPayment, false, nil)
	recorder.On("RecordIncomingTransfer", mock.Anything, mock.MatchedBy(func(in appbilling.IncomingTransfer) bool {
		return in.TransferReference == "BANK-3"
	})).Return(nil, false, shared.NewCrossTenantError("Transfer BANK-3 is already recorded for another customer"))

	poller.On("LinkPayment", mock.Anything, "BANK-1", freshPayment.ID).Return(nil)
	poller.On("LinkPayment", mock.Anything, "BANK-2", seenPayment.ID).Return(nil)

	runner, err := NewMailboxRunner(poller, recorder, zap.NewNop(), testConfig())
	require.NoError(t, err)

	stats, err := runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, PollStats{Fetched: 3, Recorded: 1, Duplicate: 1, Failed: 1}, stats)

	poller.AssertExpectations(t)
	recorder.AssertExpectations(t)
	poller.AssertNotCalled(t, "LinkPayment", mock.Anything, "BANK-3", mock.Anything)
}

func TestMailboxRunner_RunOnce_LinkFailureCounts(t *testing.T) {
	transfer := pending("BANK-9")
	payment := paymentFor(transfer)

	poller := new(mockPoller)
	poller.On("PendingTransfers", mock.Anything, 10).Return([]billing.PendingTransfer{transfer}, nil)
	poller.On("LinkPayment", mock.Anything, "BANK-9", payment.ID).Return(errors.New("bank transfer \"BANK-9\" not found"))

	recorder := new(mockRecorder)
	recorder.On("RecordIncomingTransfer", mock.Anything, mock.Anything).Return(payment, true, nil)

	runner, err := NewMailboxRunner(poller, recorder, zap.NewNop(), testConfig())
	require.NoError(t, err)

	stats, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Recorded)
}

func TestMailboxRunner_RunOnce_PollError(t *testing.T) {
	boom := errors.New("connection reset")
	poller := new(mockPoller)
	poller.On("PendingTransfers", mock.Anything, 10).Return(nil, boom)
	recorder := new(mockRecorder)

	runner, err := NewMailboxRunner(poller, recorder, zap.NewNop(), testConfig())
	require.NoError(t, err)

	_, err = runner.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	recorder.AssertNotCalled(t, "RecordIncomingTransfer", mock.Anything, mock.Anything)
}

// ---------------------------------------------------------------------------
// Lifecycle Tests
// ---------------------------------------------------------------------------

func TestMailboxRunner_PollsOnEveryTick(t *testing.T) {
	ticker := newManualTicker()
	var polls atomic.Int32

	poller := new(mockPoller)
	poller.On("PendingTransfers", mock.Anything, 10).
		Run(func(mock.Arguments) { polls.Add(1) }).
		Return([]billing.PendingTransfer{}, nil)

	runner, err := NewMailboxRunner(poller, new(mockRecorder), zap.NewNop(), testConfig(),
		WithTicker(func(d time.Duration) Ticker {
			assert.Equal(t, 5*time.Minute, d)
			return ticker
		}))
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	assert.True(t, runner.IsRunning())

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	assert.Eventually(t, func() bool { return polls.Load() == 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.Stop(ctx))
	assert.False(t, runner.IsRunning())
	assert.True(t, ticker.stopped.Load())

	// stopping twice is a no-op
	assert.NoError(t, runner.Stop(ctx))
}

func TestMailboxRunner_DisabledDoesNotStart(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	started := false
	runner, err := NewMailboxRunner(new(mockPoller), new(mockRecorder), zap.NewNop(), cfg,
		WithTicker(func(time.Duration) Ticker {
			started = true
			return newManualTicker()
		}))
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	assert.False(t, runner.IsRunning())
	assert.False(t, started)
}

func TestMailboxRunner_StopTimesOutOnStuckPoll(t *testing.T) {
	ticker := newManualTicker()
	entered := make(chan struct{})
	release := make(chan struct{})

	poller := new(mockPoller)
	poller.On("PendingTransfers", mock.Anything, 10).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return([]billing.PendingTransfer{}, nil)

	runner, err := NewMailboxRunner(poller, new(mockRecorder), zap.NewNop(), testConfig(),
		WithTicker(func(time.Duration) Ticker { return ticker }))
	require.NoError(t, err)
	require.NoError(t, runner.Start(context.Background()))

	ticker.ch <- time.Now()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = runner.Stop(ctx)
	assert.ErrorIs(t, err, ErrStopTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestMailboxRunner_StartRacingStop(t *testing.T) {
	poller := new(mockPoller)
	poller.On("PendingTransfers", mock.Anything, 10).Return([]billing.PendingTransfer{}, nil).Maybe()

	for range 50 {
		runner, err := NewMailboxRunner(poller, new(mockRecorder), zap.NewNop(), testConfig(),
			WithTicker(func(time.Duration) Ticker { return newManualTicker() }))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, runner.Start(context.Background()))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, runner.Stop(ctx))
		}()
		wg.Wait()

		require.NoError(t, runner.Stop(ctx))
		assert.False(t, runner.IsRunning())
		cancel()
	}
}
