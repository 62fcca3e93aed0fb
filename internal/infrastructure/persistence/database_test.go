package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockGorm opens gorm on the postgres dialect over a mocked connection
func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	gormDB, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()

	mock.ExpectPing()

	db := &Database{DB: gormDB}
	assert.NoError(t, db.PingContext(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	gormDB, mock, _ := newMockGorm(t)
	mock.ExpectClose()

	db := &Database{DB: gormDB}
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_PoolStats(t *testing.T) {
	gormDB, _, mockDB := newMockGorm(t)
	defer mockDB.Close()

	db := &Database{DB: gormDB}
	stats := db.PoolStats()
	assert.GreaterOrEqual(t, stats.Open, stats.InUse)
	assert.Zero(t, stats.WaitCount)
}

func TestLockingFinders_EmitForUpdate(t *testing.T) {
	id := uuid.New()

	cases := []struct {
		name  string
		table string
		find  func(ctx context.Context, db *gorm.DB) error
	}{
		{
			name:  "invoice",
			table: "invoices",
			find: func(ctx context.Context, db *gorm.DB) error {
				_, err := NewGormInvoiceRepository(db).FindByIDForUpdate(ctx, id)
				return err
			},
		},
		{
			name:  "payment record",
			table: "payment_records",
			find: func(ctx context.Context, db *gorm.DB) error {
				_, err := NewGormPaymentRecordRepository(db).FindByIDForUpdate(ctx, id)
				return err
			},
		},
		{
			name:  "credit",
			table: "customer_credits",
			find: func(ctx context.Context, db *gorm.DB) error {
				_, err := NewGormCreditRepository(db).FindByIDForUpdate(ctx, id)
				return err
			},
		},
		{
			name:  "refund",
			table: "refunds",
			find: func(ctx context.Context, db *gorm.DB) error {
				_, err := NewGormRefundRepository(db).FindByIDForUpdate(ctx, id)
				return err
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock, mockDB := newMockGorm(t)
			defer mockDB.Close()

			mock.ExpectQuery(`SELECT \* FROM "`+tc.table+`" WHERE lifecycle = \$1 AND id = \$2 ORDER BY .* LIMIT .* FOR UPDATE`).
				WithArgs(sqlmock.AnyArg(), id, sqlmock.AnyArg()).
				WillReturnError(gorm.ErrRecordNotFound)

			err := tc.find(context.Background(), gormDB)

			assert.ErrorIs(t, err, shared.ErrNotFound)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormInvoiceRepository_FindByIDsForUpdate_LocksInIDOrder(t *testing.T) {
	gormDB, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()

	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE lifecycle = \$1 AND id IN \(\$2,\$3\) ORDER BY id FOR UPDATE`).
		WithArgs(sqlmock.AnyArg(), a, b).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	invoices, err := NewGormInvoiceRepository(gormDB).FindByIDsForUpdate(context.Background(), []uuid.UUID{a, b})

	require.NoError(t, err)
	assert.Empty(t, invoices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_FindByIDsForUpdate_EmptyIDsSkipsQuery(t *testing.T) {
	gormDB, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()

	invoices, err := NewGormInvoiceRepository(gormDB).FindByIDsForUpdate(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, invoices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCreditRepository_FindAvailableByCustomerForUpdate_LocksFIFOPool(t *testing.T) {
	gormDB, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()

	customerID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "customer_credits" WHERE lifecycle = \$1 AND \(customer_id = \$2 AND status = \$3 AND current_balance > 0\) ORDER BY created_at, id FOR UPDATE`).
		WithArgs(sqlmock.AnyArg(), customerID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewGormCreditRepository(gormDB).FindAvailableByCustomerForUpdate(context.Background(), customerID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTxManager_RollsBackOnError(t *testing.T) {
	gormDB, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := NewGormTxManager(gormDB).RunInTx(context.Background(), func(ctx context.Context) error {
		_, ok := txFromContext(ctx)
		assert.True(t, ok)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
