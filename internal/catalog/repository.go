package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"littlelemon/internal/apperr"
	"littlelemon/internal/db"
	"littlelemon/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultTimeout = 2 * time.Second

// Gateway resolves menu items to their current unit price. Read-only.
type Gateway interface {
	GetPrice(ctx context.Context, menuItemID int64) (decimal.Decimal, bool, error)
}

type repository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewRepository returns a Gateway backed by the menu_items table. Every
// lookup is bounded by timeout.
func NewRepository(database *sql.DB, timeout time.Duration) Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &repository{db: database, timeout: timeout}
}

func (r *repository) GetPrice(ctx context.Context, menuItemID int64) (decimal.Decimal, bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetPrice"),
		zap.Int64("menu_item_id", menuItemID),
	)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var price decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT price FROM menu_items WHERE id = $1`,
		menuItemID,
	).Scan(&price)

	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("menu item not found")
		return decimal.Zero, false, nil
	}
	if err != nil {
		if ctx.Err() != nil || db.IsUnavailable(err) {
			log.Warn("catalog lookup timed out", zap.Error(err))
			return decimal.Zero, false, fmt.Errorf("%w: catalog: %v", apperr.ErrUpstreamUnavailable, err)
		}
		log.Error("failed to query menu item price", zap.Error(err))
		return decimal.Zero, false, fmt.Errorf("%w: %v", ErrFailedGetPrice, err)
	}

	return price, true, nil
}
