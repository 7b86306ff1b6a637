package cart

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"littlelemon/internal/apperr"
	"littlelemon/internal/db"
	"littlelemon/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Upsert(ctx context.Context, line CartLine) (*CartLine, error)
	Remove(ctx context.Context, userID, menuItemID int64) error
	Clear(ctx context.Context, userID int64) error
	ListByUser(ctx context.Context, userID int64) ([]CartLine, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(database *sql.DB) Repository {
	return &repository{db: database}
}

// Upsert replaces any existing line for (user, menu item); quantity is
// overwritten, not incremented.
func (r *repository) Upsert(ctx context.Context, line CartLine) (*CartLine, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Upsert"),
		zap.Int64("user_id", line.UserID),
		zap.Int64("menu_item_id", line.MenuItemID),
	)

	log.Debug("start upsert cart line")

	query := `
	INSERT INTO cart_lines (
		user_id,
		menu_item_id,
		quantity,
		unit_price,
		line_total
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, menu_item_id) DO UPDATE
	SET quantity   = EXCLUDED.quantity,
	    unit_price = EXCLUDED.unit_price,
	    line_total = EXCLUDED.line_total,
	    updated_at = NOW()
	RETURNING created_at, updated_at
	`

	saved := line
	err := r.db.QueryRowContext(ctx, query,
		line.UserID,
		line.MenuItemID,
		line.Quantity,
		line.UnitPrice,
		line.LineTotal,
	).Scan(&saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedUpsertCartLine, err)
	}

	log.Info("success upsert cart line", zap.Int("quantity", saved.Quantity))
	return &saved, nil
}

func (r *repository) Remove(ctx context.Context, userID, menuItemID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE user_id = $1 AND menu_item_id = $2
	`, userID, menuItemID)
	if err != nil {
		log := logger.FromCtx(ctx).With(
			zap.String("method", "Remove"),
			zap.Int64("user_id", userID),
			zap.Int64("menu_item_id", menuItemID),
		)
		return wrap(ctx, log, ErrFailedRemoveCartLine, err)
	}
	return nil
}

func (r *repository) Clear(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	if err != nil {
		log := logger.FromCtx(ctx).With(
			zap.String("method", "Clear"),
			zap.Int64("user_id", userID),
		)
		return wrap(ctx, log, ErrFailedClearCart, err)
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID int64) ([]CartLine, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListByUser"),
		zap.Int64("user_id", userID),
	)

	start := time.Now()

	rows, err := r.db.QueryContext(ctx, `
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
		ORDER BY created_at, menu_item_id
	`, userID)
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedGetCartLines, err)
	}
	defer rows.Close()

	lines, err := ScanLines(rows)
	if err != nil {
		return nil, wrap(ctx, log, ErrFailedGetCartLines, err)
	}

	log.Debug("query success",
		zap.Int("rows", len(lines)),
		zap.Duration("duration", time.Since(start)),
	)
	return lines, nil
}

// ScanLines reads rows selected in ListByUser column order. The order
// repository reuses it for the locked read inside checkout.
func ScanLines(rows *sql.Rows) ([]CartLine, error) {
	lines := []CartLine{}
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(
			&l.UserID,
			&l.MenuItemID,
			&l.Quantity,
			&l.UnitPrice,
			&l.LineTotal,
			&l.CreatedAt,
			&l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// wrap maps a driver error to the taxonomy: unreachable database or
// expired deadline is UpstreamUnavailable, a lost write race is Conflict,
// anything else is the operation sentinel.
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
