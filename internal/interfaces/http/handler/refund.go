package handler

import (
	appbilling "github.com/freshtable/billing/internal/application/billing"
	"github.com/gin-gonic/gin"
)

// RefundHandler handles refund requests and their lifecycle
type RefundHandler struct {
	BaseHandler
	commands CommandDispatcher
	refunds  RefundQueries
}

// NewRefundHandler creates a new RefundHandler
func NewRefundHandler(commands CommandDispatcher, refunds RefundQueries) *RefundHandler {
	return &RefundHandler{commands: commands, refunds: refunds}
}

// Create opens a pending refund against a credit or a payment
// POST /refunds
func (h *RefundHandler) Create(c *gin.Context) {
	var req CreateRefundRequest
	if !h.BindJSON(c, &req) {
		return
	}

	refund, err := h.commands.Dispatch(c.Request.Context(), req.toCommand())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, refund)
}

// Act approves or cancels a pending refund
// POST /refunds/:refund_id
func (h *RefundHandler) Act(c *gin.Context) {
	refundID, ok := h.ParamUUID(c, "refund_id")
	if !ok {
		return
	}
	var req RefundActionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var cmd appbilling.Command
	switch req.Action {
	case RefundActionApprove:
		cmd = appbilling.ApproveRefundCommand{
			RefundID:        refundID,
			ApprovedBy:      req.ApprovedBy,
			ReferenceNumber: req.ReferenceNumber,
		}
	default:
		cmd = appbilling.CancelRefundCommand{RefundID: refundID}
	}

	refund, err := h.commands.Dispatch(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// Delete soft-deletes a pending refund
// DELETE /refunds/:refund_id
func (h *RefundHandler) Delete(c *gin.Context) {
	refundID, ok := h.ParamUUID(c, "refund_id")
	if !ok {
		return
	}

	refund, err := h.commands.Dispatch(c.Request.Context(), appbilling.DeleteRefundCommand{RefundID: refundID})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// Get returns one refund
// GET /refunds/:refund_id
func (h *RefundHandler) Get(c *gin.Context) {
	refundID, ok := h.ParamUUID(c, "refund_id")
	if !ok {
		return
	}

	refund, err := h.refunds.GetRefund(c.Request.Context(), refundID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// ListForCustomer returns a customer's refunds, newest first
// GET /customers/:customer_id/refunds
func (h *RefundHandler) ListForCustomer(c *gin.Context) {
	customerID, ok := h.ParamUUID(c, "customer_id")
	if !ok {
		return
	}

	refunds, err := h.refunds.ListCustomerRefunds(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, refunds, len(refunds))
}
