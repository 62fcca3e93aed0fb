package handler

import (
	"github.com/gin-gonic/gin"
)

// NotificationHandler exposes the staff notifications raised by the ledger
type NotificationHandler struct {
	BaseHandler
	notifications NotificationQueries
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications NotificationQueries) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListOpen lists the customer's notifications that were not dismissed, newest first
// GET /customers/:customer_id/notifications
func (h *NotificationHandler) ListOpen(c *gin.Context) {
	customerID, ok := h.ParamUUID(c, "customer_id")
	if !ok {
		return
	}

	notifications, err := h.notifications.ListOpen(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, notifications, len(notifications))
}
