package cart

import (
	"context"

	"littlelemon/internal/apperr"
	"littlelemon/internal/catalog"
	"littlelemon/internal/logger"

	"go.uber.org/zap"
)

// Service defines the business logic for carts.
type Service interface {
	AddOrUpdate(ctx context.Context, userID, menuItemID int64, quantity int) (*CartLine, error)
	Remove(ctx context.Context, userID, menuItemID int64) error
	Clear(ctx context.Context, userID int64) error
	ListFor(ctx context.Context, userID int64) (*Cart, error)
}

type service struct {
	repo    Repository
	catalog catalog.Gateway
}

func NewService(repo Repository, catalogGw catalog.Gateway) Service {
	return &service{repo: repo, catalog: catalogGw}
}

// AddOrUpdate writes the line for (user, menu item) at the current
// catalog price, replacing any earlier quantity.
func (s *service) AddOrUpdate(ctx context.Context, userID, menuItemID int64, quantity int) (*CartLine, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AddOrUpdate"),
		zap.Int64("user_id", userID),
		zap.Int64("menu_item_id", menuItemID),
		zap.Int("quantity", quantity),
	)

	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	if quantity < 1 {
		log.Warn("invalid quantity")
		return nil, apperr.ErrInvalidQuantity
	}

	price, found, err := s.catalog.GetPrice(ctx, menuItemID)
	if err != nil {
		return nil, err
	}
	if !found {
		log.Warn("menu item not found")
		return nil, apperr.ErrItemNotFound
	}

	line, err := NewCartLine(userID, menuItemID, quantity, price)
	if err != nil {
		return nil, err
	}

	return s.repo.Upsert(ctx, line)
}

// Remove is idempotent.
func (s *service) Remove(ctx context.Context, userID, menuItemID int64) error {
	if userID == 0 {
		return apperr.ErrUnauthenticated
	}
	return s.repo.Remove(ctx, userID, menuItemID)
}

// Clear is idempotent.
func (s *service) Clear(ctx context.Context, userID int64) error {
	if userID == 0 {
		return apperr.ErrUnauthenticated
	}
	return s.repo.Clear(ctx, userID)
}

func (s *service) ListFor(ctx context.Context, userID int64) (*Cart, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}

	lines, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewCart(userID, lines), nil
}
