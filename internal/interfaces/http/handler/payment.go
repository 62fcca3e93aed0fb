package handler

import (
	appbilling "github.com/freshtable/billing/internal/application/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// PaymentHandler handles payment intake, allocation and reversal
type PaymentHandler struct {
	BaseHandler
	commands CommandDispatcher
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(commands CommandDispatcher) *PaymentHandler {
	return &PaymentHandler{commands: commands}
}

// RecordCash records cash handed over to staff
// POST /cash-payments
func (h *PaymentHandler) RecordCash(c *gin.Context) {
	var req RecordCashPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	payment, err := h.commands.Dispatch(c.Request.Context(), appbilling.RecordCashPaymentCommand{
		Request: appbilling.RecordCashPaymentRequest{
			CustomerID: mustUUID(req.CustomerID),
			Amount:     amountOf(req.Amount),
			ReceivedBy: req.ReceivedBy,
		},
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// RecordTransfer records a bank transfer already matched to a customer.
// Replaying a known reference answers 200 with the existing payment.
// POST /incoming-transfers
func (h *PaymentHandler) RecordTransfer(c *gin.Context) {
	var req RecordTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.commands.Dispatch(c.Request.Context(), appbilling.RecordIncomingTransferCommand{
		Transfer: appbilling.IncomingTransfer{
			CustomerID:        mustUUID(req.CustomerID),
			Amount:            amountOf(req.Amount),
			TransferReference: req.TransferReference,
		},
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if recorded, ok := result.(*appbilling.TransferRecorded); ok && !recorded.Created {
		h.Success(c, recorded)
		return
	}
	h.Created(c, result)
}

// Allocate applies a payment to the listed invoices in order
// POST /payments/:payment_id/allocate
func (h *PaymentHandler) Allocate(c *gin.Context) {
	paymentID, ok := h.ParamUUID(c, "payment_id")
	if !ok {
		return
	}
	var req AllocatePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.commands.Dispatch(c.Request.Context(), appbilling.AllocatePaymentCommand{
		PaymentID:  paymentID,
		InvoiceIDs: lo.Map(req.InvoiceIDs, func(id string, _ int) uuid.UUID { return mustUUID(id) }),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reverse undoes a payment's allocations and the credit it created
// POST /payments/:payment_id/reverse
func (h *PaymentHandler) Reverse(c *gin.Context) {
	paymentID, ok := h.ParamUUID(c, "payment_id")
	if !ok {
		return
	}

	result, err := h.commands.Dispatch(c.Request.Context(), appbilling.ReversePaymentCommand{PaymentID: paymentID})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
