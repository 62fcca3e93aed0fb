package persistence

import (
	"context"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const notifySavepoint = "billing_notification"

// GormNotificationStore persists staff notifications. Inside a transaction the
// write runs under a savepoint, so a failed insert leaves the caller's
// transaction usable.
type GormNotificationStore struct {
	db *gorm.DB
}

// NewGormNotificationStore creates a new GormNotificationStore
func NewGormNotificationStore(db *gorm.DB) *GormNotificationStore {
	return &GormNotificationStore{db: db}
}

// Notify stores a notification
func (s *GormNotificationStore) Notify(ctx context.Context, n billing.Notification) error {
	return s.isolated(ctx, func(db *gorm.DB) error {
		return db.Create(models.NotificationModelFromDomain(n)).Error
	})
}

// Dismiss hides every notification of the type carrying actionReference
func (s *GormNotificationStore) Dismiss(ctx context.Context, notificationType billing.NotificationType, actionReference string) error {
	return s.isolated(ctx, func(db *gorm.DB) error {
		return db.Model(&models.NotificationModel{}).
			Where("type = ? AND action_reference = ? AND dismissed = ?", notificationType, actionReference, false).
			Update("dismissed", true).Error
	})
}

// ListOpen returns the notifications not yet dismissed for a customer, newest first
func (s *GormNotificationStore) ListOpen(ctx context.Context, customerID uuid.UUID) ([]billing.Notification, error) {
	var rows []models.NotificationModel
	if err := dbFromContext(ctx, s.db).
		Where("customer_id = ? AND dismissed = ?", customerID, false).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	notifications := make([]billing.Notification, len(rows))
	for i := range rows {
		notifications[i] = rows[i].ToDomain()
	}
	return notifications, nil
}

func (s *GormNotificationStore) isolated(ctx context.Context, fn func(db *gorm.DB) error) error {
	tx, ok := txFromContext(ctx)
	if !ok {
		return fn(s.db.WithContext(ctx))
	}
	if err := tx.SavePoint(notifySavepoint).Error; err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.RollbackTo(notifySavepoint).Error; rbErr != nil {
			return rbErr
		}
		return err
	}
	return nil
}
