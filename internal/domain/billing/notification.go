package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType names the event a staff notification is about
type NotificationType string

const (
	NotificationExcessPayment   NotificationType = "excess_payment"
	NotificationRefundRequest   NotificationType = "refund_request"
	NotificationRefundCompleted NotificationType = "refund_completed"
)

// NotificationPriority orders notifications on the staff dashboard
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "LOW"
	PriorityNormal NotificationPriority = "NORMAL"
	PriorityHigh   NotificationPriority = "HIGH"
)

// Notification is a staff-facing message raised by billing operations
type Notification struct {
	ID              uuid.UUID            `json:"id"`
	Type            NotificationType     `json:"type"`
	CustomerID      uuid.UUID            `json:"customer_id"`
	Title           string               `json:"title"`
	Message         string               `json:"message"`
	Priority        NotificationPriority `json:"priority"`
	ActionReference string               `json:"action_reference"`
	Dismissed       bool                 `json:"dismissed"`
	CreatedAt       time.Time            `json:"created_at"`
}

func newNotification(t NotificationType, customerID uuid.UUID, title, message string, priority NotificationPriority, ref uuid.UUID, now time.Time) Notification {
	return Notification{
		ID:              uuid.New(),
		Type:            t,
		CustomerID:      customerID,
		Title:           title,
		Message:         message,
		Priority:        priority,
		ActionReference: ref.String(),
		CreatedAt:       now,
	}
}

// ExcessPaymentNotification announces credit created from an overpayment
func ExcessPaymentNotification(payment *PaymentRecord, credit *Credit, now time.Time) Notification {
	return newNotification(NotificationExcessPayment, payment.CustomerID,
		"Excess payment received",
		fmt.Sprintf("Payment of %s exceeded the selected invoices; %s was stored as credit", payment.Amount, credit.OriginalAmount),
		PriorityNormal, credit.ID, now)
}

// RefundRequestNotification asks staff to review a new refund
func RefundRequestNotification(refund *Refund, now time.Time) Notification {
	return newNotification(NotificationRefundRequest, refund.CustomerID,
		"Refund requested",
		fmt.Sprintf("Refund of %s via %s requested by %s", refund.RefundAmount, refund.RefundMethod, refund.RequestedBy),
		PriorityHigh, refund.ID, now)
}

// RefundCompletedNotification records that a refund went out
func RefundCompletedNotification(refund *Refund, now time.Time) Notification {
	return newNotification(NotificationRefundCompleted, refund.CustomerID,
		"Refund completed",
		fmt.Sprintf("Refund of %s approved by %s", refund.RefundAmount, refund.ApprovedBy),
		PriorityLow, refund.ID, now)
}
