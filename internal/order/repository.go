package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"littlelemon/internal/apperr"
	"littlelemon/internal/cart"
	"littlelemon/internal/db"
	"littlelemon/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	// Checkout converts the user's cart into a Pending order in one
	// transaction and empties the cart.
	Checkout(ctx context.Context, userID int64) (*Order, error)
	GetByID(ctx context.Context, orderID int64) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]*Order, error)
	// Save writes status and assignment when the stored version still
	// equals expectedVersion, and bumps o.Version.
	Save(ctx context.Context, o *Order, expectedVersion int64) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	o.id,
	o.user_id,
	o.delivery_crew_id,
	o.status,
	o.total,
	o.version,
	o.created_at,
	o.updated_at
`

func (r *repository) Checkout(ctx context.Context, userID int64) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Checkout"),
		zap.Int64("user_id", userID),
	)

	log.Debug("start checkout")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedCheckout, err)
	}
	defer tx.Rollback()

	// 1. Lock the cart. A concurrent checkout waits here and then sees
	// the lines already gone.
	rows, err := tx.QueryContext(ctx, `
		SELECT
			user_id,
			menu_item_id,
			quantity,
			unit_price,
			line_total,
			created_at,
			updated_at
		FROM cart_lines
		WHERE user_id = $1
		ORDER BY menu_item_id
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedCheckout, err)
	}
	lines, err := cart.ScanLines(rows)
	rows.Close()
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedCheckout, err)
	}

	o, err := NewFromCart(userID, lines)
	if err != nil {
		log.Info("checkout rejected", zap.Error(err))
		return nil, err
	}

	// 2. Insert order
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, status, total, version)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, o.UserID, string(o.Status), o.Total, o.Version).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedCheckout, err)
	}

	// 3. Insert order lines
	for _, l := range o.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, menu_item_id, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5)
		`, o.ID, l.MenuItemID, l.Quantity, l.UnitPrice, l.LineTotal)
		if err != nil {
			return nil, wrap(ctx, log, ErrFailedCheckout, err)
		}
	}

	// 4. Empty the cart. Only the locked lines go; a line added after the
	// lock stays in the cart for the next checkout.
	itemIDs := make([]int64, 0, len(o.Lines))
	for _, l := range o.Lines {
		itemIDs = append(itemIDs, l.MenuItemID)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE user_id = $1 AND menu_item_id = ANY($2)
	`, userID, pq.Array(itemIDs))
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedCheckout, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrap(ctx, log, ErrFailedCheckout, err)
	}

	log.Info("checkout committed",
		zap.Int64("order_id", o.ID),
		zap.Int("lines", len(o.Lines)),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

func (r *repository) GetByID(ctx context.Context, orderID int64) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetByID"),
		zap.Int64("order_id", orderID),
	)

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrOrderNotFound
	}
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedGetOrder, err)
	}

	byOrder, err := r.linesFor(ctx, []int64{o.ID})
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedGetOrder, err)
	}
	o.Lines = byOrder[o.ID]

	return o, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "List"),
	)

	query := `SELECT ` + orderColumns + ` FROM orders o`

	var conds []string
	var args []any
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conds = append(conds, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if filter.DeliveryCrewID != nil {
		args = append(args, *filter.DeliveryCrewID)
		conds = append(conds, fmt.Sprintf("o.delivery_crew_id = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY o.created_at DESC, o.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedGetOrders, err)
	}
	defer rows.Close()

	orders := []*Order{}
	ids := []int64{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrap(ctx, log, ErrFailedGetOrders, err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ctx, log, ErrFailedGetOrders, err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	byOrder, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedGetOrders, err)
	}
	for _, o := range orders {
		o.Lines = byOrder[o.ID]
	}

	log.Debug("list orders success", zap.Int("count", len(orders)))
	return orders, nil
}

func (r *repository) Save(ctx context.Context, o *Order, expectedVersion int64) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Save"),
		zap.Int64("order_id", o.ID),
		zap.Int64("expected_version", expectedVersion),
	)

	var crewID sql.NullInt64
	if o.DeliveryCrewID != nil {
		crewID = sql.NullInt64{Int64: *o.DeliveryCrewID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $1,
		    delivery_crew_id = $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $3 AND version = $4
		RETURNING version, updated_at
	`, string(o.Status), crewID, o.ID, expectedVersion).Scan(&o.Version, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn("version mismatch")
		return apperr.ErrConflict
	}
	if err != nil {
		return wrap(ctx, log, ErrFailedSaveOrder, err)
	}

	log.Info("order saved",
		zap.String("status", o.Status.String()),
		zap.Int64("version", o.Version),
	)
	return nil
}

func (r *repository) linesFor(ctx context.Context, orderIDs []int64) (map[int64][]OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, menu_item_id, quantity, unit_price, line_total
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]OrderLine, len(orderIDs))
	for rows.Next() {
		var orderID int64
		var l OrderLine
		if err := rows.Scan(&orderID, &l.MenuItemID, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*Order, error) {
	var o Order
	var crewID sql.NullInt64
	var status string
	if err := s.Scan(
		&o.ID,
		&o.UserID,
		&crewID,
		&status,
		&o.Total,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if crewID.Valid {
		id := crewID.Int64
		o.DeliveryCrewID = &id
	}
	o.Status = Status(status)
	return &o, nil
}

func wrap(ctx context.Context, log *zap.Logger, op, err error) error {
	switch {
	case ctx.Err() != nil || db.IsUnavailable(err):
		log.Warn("database unavailable", zap.Error(err))
		return fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	case db.IsConflict(err):
		log.Warn("concurrent write detected", zap.Error(err))
		return fmt.Errorf("%w: %v", apperr.ErrConflict, err)
	}
	log.Error("query failed", zap.Error(err))
	return fmt.Errorf("%w: %v", op, err)
}
