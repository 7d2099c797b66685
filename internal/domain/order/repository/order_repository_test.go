package repository

import (
	"testing"

	"groupbuy_backend/internal/domain/order/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockRepo(t *testing.T) (OrderRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewOrderRepository(gormDB), mock
}

func TestUpdateStatus(t *testing.T) {
	t.Run("moves the order and appends history in one transaction", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "orders" SET "status"=`).
			WithArgs(model.OrderFrozen, "order-1", model.OrderPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE orders SET history = COALESCE`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.UpdateStatus("order-1", model.OrderPending, model.OrderFrozen, "hold confirmed"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows reports ErrStaleStatus", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "orders" SET "status"=`).
			WithArgs(model.OrderFrozen, "order-1", model.OrderPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.UpdateStatus("order-1", model.OrderPending, model.OrderFrozen, "")
		assert.ErrorIs(t, err, ErrStaleStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pairs outside the lifecycle table never reach the database", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		err := repo.UpdateStatus("order-1", model.OrderDelivered, model.OrderPaid, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdatePaymentStatus(t *testing.T) {
	t.Run("guarded single-statement update", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`UPDATE "payments" SET "status"=`).
			WithArgs(model.PaymentCharged, "pay-1", model.PaymentFrozen).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdatePaymentStatus("pay-1", model.PaymentFrozen, model.PaymentCharged))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a charged payment cannot refreeze", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		err := repo.UpdatePaymentStatus("pay-1", model.PaymentCharged, model.PaymentFrozen)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
