package order

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"testing"
	"time"

	"littlelemon/internal/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cartColumns = []string{"user_id", "menu_item_id", "quantity", "unit_price", "line_total", "created_at", "updated_at"}

var orderRowColumns = []string{"id", "user_id", "delivery_crew_id", "status", "total", "version", "created_at", "updated_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func twoLineCart() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(cartColumns).
		AddRow(int64(1), int64(1), 2, "12.99", "25.98", now, now).
		AddRow(int64(1), int64(2), 1, "8.99", "8.99", now, now)
}

func TestRepository_Checkout(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM cart_lines WHERE user_id = \$1 ORDER BY menu_item_id FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnRows(twoLineCart())
		mock.ExpectQuery(`INSERT INTO orders \(user_id, status, total, version\)`).
			WithArgs(int64(1), "pending", sqlmock.AnyArg(), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(100), now, now))
		mock.ExpectExec(`INSERT INTO order_lines`).
			WithArgs(int64(100), int64(1), 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT INTO order_lines`).
			WithArgs(int64(100), int64(2), 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec(`DELETE FROM cart_lines WHERE user_id = \$1 AND menu_item_id = ANY\(\$2\)`).
			WithArgs(int64(1), "{1,2}").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		o, err := repo.Checkout(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(100), o.ID)
		assert.Equal(t, "34.97", o.Total.StringFixed(2))
		assert.Len(t, o.Lines, 2)
		assert.Equal(t, StatusPending, o.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyCartCreatesNothing", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM cart_lines`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(cartColumns))
		mock.ExpectRollback()

		o, err := repo.Checkout(context.Background(), 1)
		assert.ErrorIs(t, err, apperr.ErrEmptyCart)
		assert.Nil(t, o)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BeginFails", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)

		mock.ExpectBegin().WillReturnError(errors.New("begin failed"))

		_, err := repo.Checkout(context.Background(), 1)
		assert.ErrorIs(t, err, ErrFailedCheckout)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// Each step failure must roll back, leaving cart_lines untouched and no
// order behind.
func TestRepository_Checkout_FaultInjection(t *testing.T) {
	boom := errors.New("injected failure")
	now := time.Now()

	expectLock := func(mock sqlmock.Sqlmock) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM cart_lines`).WithArgs(int64(1)).WillReturnRows(twoLineCart())
	}
	expectOrderInsert := func(mock sqlmock.Sqlmock) {
		mock.ExpectQuery(`INSERT INTO orders`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(100), now, now))
	}
	expectLines := func(mock sqlmock.Sqlmock) {
		mock.ExpectExec(`INSERT INTO order_lines`).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT INTO order_lines`).WillReturnResult(sqlmock.NewResult(2, 1))
	}

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "LockFails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT .* FROM cart_lines`).WillReturnError(boom)
				mock.ExpectRollback()
			},
			wantErr: ErrFailedCheckout,
		},
		{
			name: "OrderInsertFails",
			setup: func(mock sqlmock.Sqlmock) {
				expectLock(mock)
				mock.ExpectQuery(`INSERT INTO orders`).WillReturnError(boom)
				mock.ExpectRollback()
			},
			wantErr: ErrFailedCheckout,
		},
		{
			name: "SecondLineInsertFails",
			setup: func(mock sqlmock.Sqlmock) {
				expectLock(mock)
				expectOrderInsert(mock)
				mock.ExpectExec(`INSERT INTO order_lines`).WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec(`INSERT INTO order_lines`).WillReturnError(boom)
				mock.ExpectRollback()
			},
			wantErr: ErrFailedCheckout,
		},
		{
			name: "CartDeleteFails",
			setup: func(mock sqlmock.Sqlmock) {
				expectLock(mock)
				expectOrderInsert(mock)
				expectLines(mock)
				mock.ExpectExec(`DELETE FROM cart_lines`).WillReturnError(boom)
				mock.ExpectRollback()
			},
			wantErr: ErrFailedCheckout,
		},
		{
			name: "CommitFails",
			setup: func(mock sqlmock.Sqlmock) {
				expectLock(mock)
				expectOrderInsert(mock)
				expectLines(mock)
				mock.ExpectExec(`DELETE FROM cart_lines`).WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectCommit().WillReturnError(boom)
			},
			wantErr: ErrFailedCheckout,
		},
		{
			name: "SerializationFailureIsConflict",
			setup: func(mock sqlmock.Sqlmock) {
				expectLock(mock)
				mock.ExpectQuery(`INSERT INTO orders`).WillReturnError(&pq.Error{Code: "40001"})
				mock.ExpectRollback()
			},
			wantErr: apperr.ErrConflict,
		},
		{
			name: "NetworkErrorIsUnavailable",
			setup: func(mock sqlmock.Sqlmock) {
				expectLock(mock)
				mock.ExpectQuery(`INSERT INTO orders`).
					WillReturnError(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")})
				mock.ExpectRollback()
			},
			wantErr: apperr.ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewRepository(db)
			tt.setup(mock)

			o, err := repo.Checkout(context.Background(), 1)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, o)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_GetByID(t *testing.T) {
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)

		mock.ExpectQuery(`SELECT .* FROM orders o WHERE o.id = \$1`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(orderRowColumns).
				AddRow(int64(5), int64(1), int64(7), "preparing", "34.97", int64(2), now, now))
		mock.ExpectQuery(`SELECT order_id, menu_item_id, quantity, unit_price, line_total FROM order_lines WHERE order_id = ANY\(\$1\)`).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"order_id", "menu_item_id", "quantity", "unit_price", "line_total"}).
				AddRow(int64(5), int64(1), 2, "12.99", "25.98").
				AddRow(int64(5), int64(2), 1, "8.99", "8.99"))

		o, err := repo.GetByID(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, StatusPreparing, o.Status)
		require.NotNil(t, o.DeliveryCrewID)
		assert.Equal(t, int64(7), *o.DeliveryCrewID)
		assert.Equal(t, int64(2), o.Version)
		assert.Len(t, o.Lines, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnassignedCrewIsNil", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)

		mock.ExpectQuery(`FROM orders o WHERE o.id = \$1`).
			WillReturnRows(sqlmock.NewRows(orderRowColumns).
				AddRow(int64(5), int64(1), nil, "pending", "8.99", int64(1), now, now))
		mock.ExpectQuery(`FROM order_lines`).
			WillReturnRows(sqlmock.NewRows([]string{"order_id", "menu_item_id", "quantity", "unit_price", "line_total"}))

		o, err := repo.GetByID(context.Background(), 5)
		require.NoError(t, err)
		assert.Nil(t, o.DeliveryCrewID)
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)

		mock.ExpectQuery(`FROM orders o WHERE o.id = \$1`).
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows(orderRowColumns))

		_, err := repo.GetByID(context.Background(), 404)
		assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
	})

	t.Run("Error", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)

		mock.ExpectQuery(`FROM orders o`).WillReturnError(errors.New("db error"))

		_, err := repo.GetByID(context.Background(), 5)
		assert.ErrorIs(t, err, ErrFailedGetOrder)
	})
}

func TestRepository_List(t *testing.T) {
	now := time.Now()
	lineColumns := []string{"order_id", "menu_item_id", "quantity", "unit_price", "line_total"}

	t.Run("ScopedToCrew", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)
		crew := int64(7)

		mock.ExpectQuery(`FROM orders o WHERE o.delivery_crew_id = \$1 ORDER BY o.created_at DESC, o.id DESC`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(orderRowColumns).
				AddRow(int64(6), int64(2), int64(7), "out_for_delivery", "10.00", int64(3), now, now).
				AddRow(int64(5), int64(1), int64(7), "preparing", "8.99", int64(2), now, now))
		mock.ExpectQuery(`FROM order_lines WHERE order_id = ANY`).
			WillReturnRows(sqlmock.NewRows(lineColumns).
				AddRow(int64(5), int64(2), 1, "8.99", "8.99").
				AddRow(int64(6), int64(3), 1, "10.00", "10.00"))

		orders, err := repo.List(context.Background(), ListFilter{DeliveryCrewID: &crew})
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, int64(6), orders[0].ID)
		assert.Len(t, orders[0].Lines, 1)
		assert.Len(t, orders[1].Lines, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AllOrdersNoWhere", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)

		mock.ExpectQuery(`SELECT .* FROM orders o ORDER BY`).
			WillReturnRows(sqlmock.NewRows(orderRowColumns))

		orders, err := repo.List(context.Background(), ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, orders)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ScopedToOwner", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)
		owner := int64(1)

		mock.ExpectQuery(`WHERE o.user_id = \$1`).
			WithArgs(int64(1)).
			WillReturnError(errors.New("db error"))

		_, err := repo.List(context.Background(), ListFilter{UserID: &owner})
		assert.ErrorIs(t, err, ErrFailedGetOrders)
	})
}

func TestRepository_Save(t *testing.T) {
	updateSQL := `UPDATE orders SET status = \$1, delivery_crew_id = \$2, version = version \+ 1, updated_at = NOW\(\) WHERE id = \$3 AND version = \$4`

	t.Run("Success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)
		now := time.Now()
		crew := int64(7)
		o := &Order{ID: 5, Status: StatusPreparing, DeliveryCrewID: &crew, Version: 1}

		mock.ExpectQuery(updateSQL).
			WithArgs("preparing", int64(7), int64(5), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}).AddRow(int64(2), now))

		require.NoError(t, repo.Save(context.Background(), o, 1))
		assert.Equal(t, int64(2), o.Version)
		assert.Equal(t, now, o.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ClearsCrew", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)
		o := &Order{ID: 5, Status: StatusPreparing, Version: 2}

		mock.ExpectQuery(updateSQL).
			WithArgs("preparing", nil, int64(5), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}).AddRow(int64(3), time.Now()))

		require.NoError(t, repo.Save(context.Background(), o, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StaleVersionIsConflict", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)
		o := &Order{ID: 5, Status: StatusDelivered, Version: 1}

		mock.ExpectQuery(updateSQL).
			WithArgs("delivered", nil, int64(5), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}))

		err := repo.Save(context.Background(), o, 1)
		assert.ErrorIs(t, err, apperr.ErrConflict)
		assert.True(t, apperr.IsRetryable(err))
		assert.Equal(t, int64(1), o.Version)
	})

	t.Run("Error", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRepository(db)

		mock.ExpectQuery(`UPDATE orders`).WillReturnError(errors.New("db error"))

		err := repo.Save(context.Background(), &Order{ID: 5, Status: StatusPreparing}, 1)
		assert.ErrorIs(t, err, ErrFailedSaveOrder)
	})
}
