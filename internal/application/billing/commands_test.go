package billing

import (
	"context"
	"testing"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RoutesCommands(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	customer := uuid.New()
	inv := h.invoice(customer, "40.00")
	direct := h.invoice(customer, "15.00")

	out, err := h.dispatcher.Dispatch(ctx, RecordCashPaymentCommand{Request: RecordCashPaymentRequest{
		CustomerID: customer,
		Amount:     m("50.00"),
		ReceivedBy: "driver-3",
	}})
	require.NoError(t, err)
	payment, ok := out.(*billing.PaymentRecord)
	require.True(t, ok)

	out, err = h.dispatcher.Dispatch(ctx, AllocatePaymentCommand{PaymentID: payment.ID, InvoiceIDs: []uuid.UUID{inv.ID}})
	require.NoError(t, err)
	alloc, ok := out.(*AllocationResult)
	require.True(t, ok)
	assertMoney(t, "10.00", alloc.ExcessAmount)

	out, err = h.dispatcher.Dispatch(ctx, ApplyCreditCommand{
		CustomerID:  customer,
		Allocations: []CreditAllocationRequest{{InvoiceID: direct.ID, Amount: m("4.00")}},
	})
	require.NoError(t, err)
	applied, ok := out.(*ApplyCreditResult)
	require.True(t, ok)
	assertMoney(t, "6.00", applied.RemainingCredit)

	counter := h.cash(customer, "11.00")
	out, err = h.dispatcher.Dispatch(ctx, PayInvoiceCommand{Request: PayInvoiceRequest{
		InvoiceID:       direct.ID,
		PaymentRecordID: counter.ID,
		Amount:          m("11.00"),
		AppliedBy:       "cashier-1",
	}})
	require.NoError(t, err)
	paid, ok := out.(*PayInvoiceResult)
	require.True(t, ok)
	assert.Equal(t, billing.PaymentStatusPaid, paid.PaymentStatus)

	out, err = h.dispatcher.Dispatch(ctx, CreateRefundCommand{Request: creditRefund(customer, *alloc.CreditID, "6.00")})
	require.NoError(t, err)
	refund, ok := out.(*billing.Refund)
	require.True(t, ok)

	out, err = h.dispatcher.Dispatch(ctx, ApproveRefundCommand{RefundID: refund.ID, ApprovedBy: "finance-lead"})
	require.NoError(t, err)
	assert.Equal(t, billing.RefundStatusCompleted, out.(*billing.Refund).Status)

	_, err = h.dispatcher.Dispatch(ctx, CancelRefundCommand{RefundID: refund.ID})
	assertKind(t, err, shared.KindStateConflict)
}

func TestDispatcher_RefundCancelAndDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	customer := uuid.New()
	credit := h.creditOf(customer, "20.00")

	out, err := h.dispatcher.Dispatch(ctx, CreateRefundCommand{Request: creditRefund(customer, credit.ID, "5.00")})
	require.NoError(t, err)
	first := out.(*billing.Refund)

	out, err = h.dispatcher.Dispatch(ctx, CancelRefundCommand{RefundID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, billing.RefundStatusCancelled, out.(*billing.Refund).Status)

	out, err = h.dispatcher.Dispatch(ctx, CreateRefundCommand{Request: creditRefund(customer, credit.ID, "5.00")})
	require.NoError(t, err)
	second := out.(*billing.Refund)

	_, err = h.dispatcher.Dispatch(ctx, DeleteRefundCommand{RefundID: second.ID})
	require.NoError(t, err)

	_, err = h.refund.GetRefund(ctx, second.ID)
	assertKind(t, err, shared.KindNotFound)
}

func TestDispatcher_TransferAndReversal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	customer := uuid.New()
	transfer := IncomingTransfer{CustomerID: customer, Amount: m("25.00"), TransferReference: "BANK-77"}

	out, err := h.dispatcher.Dispatch(ctx, RecordIncomingTransferCommand{Transfer: transfer})
	require.NoError(t, err)
	recorded, ok := out.(*TransferRecorded)
	require.True(t, ok)
	assert.True(t, recorded.Created)

	out, err = h.dispatcher.Dispatch(ctx, RecordIncomingTransferCommand{Transfer: transfer})
	require.NoError(t, err)
	assert.Equal(t, &TransferRecorded{PaymentID: recorded.PaymentID, Created: false}, out)

	out, err = h.dispatcher.Dispatch(ctx, ReversePaymentCommand{PaymentID: recorded.PaymentID})
	require.NoError(t, err)
	reversal, ok := out.(*ReversalResult)
	require.True(t, ok)
	assert.Equal(t, recorded.PaymentID, reversal.PaymentID)
	assert.Empty(t, reversal.ReversedInvoices)
}

func TestDispatcher_FailuresReturnNilResult(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	commands := []Command{
		AllocatePaymentCommand{PaymentID: uuid.New(), InvoiceIDs: []uuid.UUID{uuid.New()}},
		ApproveRefundCommand{RefundID: uuid.New(), ApprovedBy: "finance-lead"},
		CancelRefundCommand{RefundID: uuid.New()},
		PayInvoiceCommand{Request: PayInvoiceRequest{
			InvoiceID:       uuid.New(),
			PaymentRecordID: uuid.New(),
			Amount:          m("5.00"),
			AppliedBy:       "cashier-1",
		}},
		ReversePaymentCommand{PaymentID: uuid.New()},
	}
	for _, cmd := range commands {
		t.Run(cmd.Name(), func(t *testing.T) {
			out, err := h.dispatcher.Dispatch(ctx, cmd)
			assertKind(t, err, shared.KindNotFound)
			assert.True(t, out == nil, "result should be an untyped nil, got %T", out)
		})
	}
}

func TestCommandNames(t *testing.T) {
	commands := []Command{
		AllocatePaymentCommand{},
		ApplyCreditCommand{},
		CreateRefundCommand{},
		ApproveRefundCommand{},
		CancelRefundCommand{},
		DeleteRefundCommand{},
		PayInvoiceCommand{},
		RecordCashPaymentCommand{},
		RecordIncomingTransferCommand{},
		ReversePaymentCommand{},
	}

	seen := make(map[string]bool)
	for _, c := range commands {
		assert.NotEmpty(t, c.Name())
		assert.False(t, seen[c.Name()], "duplicate command name %s", c.Name())
		seen[c.Name()] = true
	}
}
