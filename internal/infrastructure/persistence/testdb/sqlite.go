// Package testdb opens throwaway databases carrying the billing schema.
// NewSQLite is fast and used by unit tests. NewPostgres (build tag
// integration) runs the real migrations in a container.
package testdb

import (
	"testing"

	"github.com/freshtable/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table the billing services read or write
func Models() []any {
	return []any{
		&models.InvoiceModel{},
		&models.PaymentRecordModel{},
		&models.AllocationModel{},
		&models.CreditModel{},
		&models.CreditUsageModel{},
		&models.InvoicePaymentModel{},
		&models.RefundModel{},
		&models.NotificationModel{},
		&models.OrderModel{},
		&models.BankTransferModel{},
	}
}

// NewSQLite opens a private in-memory database with the billing tables.
// The pool holds one connection so transactions serialize the way row
// locks would on Postgres.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}
