package billing_test

import (
	"testing"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaymentRecords(t *testing.T) {
	cash, err := billing.NewCashPayment(uuid.New(), money("60"), "front-desk", testNow)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentSourceCash, cash.Source)
	assert.Equal(t, billing.AllocationStatusUnallocated, cash.AllocationStatus)
	assert.False(t, cash.IsExternalTransfer())

	transfer, err := billing.NewTransferPayment(uuid.New(), money("70"), "TRX-991", testNow)
	require.NoError(t, err)
	assert.True(t, transfer.IsExternalTransfer())
	assert.Equal(t, "TRX-991", transfer.SourceReference)

	_, err = billing.NewTransferPayment(uuid.New(), money("70"), "", testNow)
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	_, err = billing.NewCashPayment(uuid.New(), money("-1"), "desk", testNow)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestPaymentRecord_CompleteAllocation(t *testing.T) {
	t.Run("fully allocated", func(t *testing.T) {
		p, err := billing.NewCashPayment(uuid.New(), money("60"), "desk", testNow)
		require.NoError(t, err)
		require.NoError(t, p.CheckAllocatable())

		excess := p.CompleteAllocation(money("60"), testNow)
		assert.True(t, excess.IsZero())
		assert.Equal(t, billing.AllocationStatusFullyAllocated, p.AllocationStatus)
		assert.True(t, p.IsConserved())
		assert.True(t, shared.IsKind(p.CheckAllocatable(), shared.KindStateConflict))
	})

	t.Run("excess recorded", func(t *testing.T) {
		p, err := billing.NewCashPayment(uuid.New(), money("70"), "desk", testNow)
		require.NoError(t, err)

		excess := p.CompleteAllocation(money("40"), testNow)
		assert.Equal(t, "30.00", excess.String())
		assert.Equal(t, billing.AllocationStatusHasExcess, p.AllocationStatus)
		assert.True(t, p.IsConserved())
		assert.True(t, p.Remaining().IsZero())

		err = p.CheckAllocatable()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no unallocated amount")
	})
}

func TestPaymentRecord_ApplyDirect(t *testing.T) {
	p, err := billing.NewCashPayment(uuid.New(), money("50"), "desk", testNow)
	require.NoError(t, err)

	require.NoError(t, p.ApplyDirect(money("20"), testNow))
	assert.Equal(t, billing.AllocationStatusPartial, p.AllocationStatus)
	assert.Equal(t, "30.00", p.Remaining().String())
	assert.True(t, p.IsConserved())

	err = p.ApplyDirect(money("30.01"), testNow)
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindInsufficientFunds))
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, billing.CodeExceedsPayment, de.Code)
	assert.Equal(t, "20.00", p.TotalAllocated.String())

	require.NoError(t, p.ApplyDirect(money("30"), testNow))
	assert.Equal(t, billing.AllocationStatusFullyAllocated, p.AllocationStatus)
	assert.True(t, p.IsConserved())
	assert.True(t, shared.IsKind(p.CheckAllocatable(), shared.KindStateConflict))

	excess, err := billing.NewCashPayment(uuid.New(), money("70"), "desk", testNow)
	require.NoError(t, err)
	excess.CompleteAllocation(money("40"), testNow)
	assert.True(t, shared.IsKind(excess.ApplyDirect(money("1"), testNow), shared.KindInsufficientFunds))
}

func TestPaymentRecord_Reverse(t *testing.T) {
	p, err := billing.NewCashPayment(uuid.New(), money("70"), "desk", testNow)
	require.NoError(t, err)
	p.CompleteAllocation(money("40"), testNow)

	require.NoError(t, p.Reverse(testNow))
	assert.False(t, p.IsActive())
	assert.Equal(t, billing.AllocationStatusUnallocated, p.AllocationStatus)
	assert.True(t, p.TotalAllocated.IsZero())

	assert.True(t, shared.IsKind(p.Reverse(testNow), shared.KindStateConflict))
}
