// Package memstore keeps carts, orders, menu prices and group
// memberships in process memory. It satisfies the same repository and
// gateway interfaces as the Postgres implementations; every method holds
// a single mutex, so a checkout is serialized against every other write.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"littlelemon/internal/apperr"
	"littlelemon/internal/cart"
	"littlelemon/internal/catalog"
	"littlelemon/internal/identity"
	"littlelemon/internal/order"

	"github.com/shopspring/decimal"
)

// Step names a point inside Checkout where a fault can be injected.
type Step string

const (
	StepLockCart    Step = "lock_cart"
	StepInsertOrder Step = "insert_order"
	StepInsertLines Step = "insert_lines"
	StepDeleteCart  Step = "delete_cart"
	StepCommit      Step = "commit"
)

type Store struct {
	mu sync.Mutex

	prices map[int64]decimal.Decimal
	groups map[int64]identity.Roles
	carts  map[int64]map[int64]cart.CartLine
	orders map[int64]*order.Order
	nextID int64

	now   func() time.Time
	fault func(Step) error
}

var (
	_ cart.Repository  = (*Store)(nil)
	_ order.Repository = (*Store)(nil)
	_ catalog.Gateway  = (*Store)(nil)
	_ identity.Gateway = (*Store)(nil)
)

func New() *Store {
	return &Store{
		prices: map[int64]decimal.Decimal{},
		groups: map[int64]identity.Roles{},
		carts:  map[int64]map[int64]cart.CartLine{},
		orders: map[int64]*order.Order{},
		now:    time.Now,
	}
}

func (s *Store) AddMenuItem(item catalog.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[item.ID] = item.Price
}

func (s *Store) SetRoles(userID int64, roles ...identity.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[userID] = identity.NewRoles(roles...)
}

// InjectFault installs fn to be consulted at each checkout step. A non-nil
// return aborts the checkout at that step. Pass nil to clear.
func (s *Store) InjectFault(fn func(Step) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

type fixture struct {
	MenuItems  []catalog.MenuItem `json:"menu_items"`
	UserGroups []struct {
		UserID int64    `json:"user_id"`
		Groups []string `json:"groups"`
	} `json:"user_groups"`
}

// Load reads menu items and user groups from a JSON document.
func (s *Store) Load(r io.Reader) error {
	var f fixture
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return fmt.Errorf("decode fixture: %w", err)
	}
	for _, item := range f.MenuItems {
		s.AddMenuItem(item)
	}
	for _, ug := range f.UserGroups {
		roles := identity.Roles{}
		for _, g := range ug.Groups {
			role, ok := identity.ParseRole(g)
			if !ok {
				return fmt.Errorf("user %d: unknown group %q", ug.UserID, g)
			}
			roles = append(roles, role)
		}
		s.SetRoles(ug.UserID, roles...)
	}
	return nil
}

// -- catalog.Gateway --

func (s *Store) GetPrice(ctx context.Context, menuItemID int64) (decimal.Decimal, bool, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.prices[menuItemID]
	return price, ok, nil
}

// -- identity.Gateway --

func (s *Store) GetRoles(ctx context.Context, userID int64) (identity.Roles, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(identity.Roles{}, s.groups[userID]...), nil
}

func (s *Store) RoleOf(ctx context.Context, userID int64, role identity.Role) (bool, error) {
	roles, err := s.GetRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	return roles.Has(role), nil
}

// -- cart.Repository --

func (s *Store) Upsert(_ context.Context, line cart.CartLine) (*cart.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, ok := s.carts[line.UserID]
	if !ok {
		lines = map[int64]cart.CartLine{}
		s.carts[line.UserID] = lines
	}

	now := s.now()
	saved := line
	saved.CreatedAt = now
	if prev, ok := lines[line.MenuItemID]; ok {
		saved.CreatedAt = prev.CreatedAt
	}
	saved.UpdatedAt = now
	lines[line.MenuItemID] = saved
	return &saved, nil
}

func (s *Store) Remove(_ context.Context, userID, menuItemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts[userID], menuItemID)
	return nil
}

func (s *Store) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func (s *Store) ListByUser(_ context.Context, userID int64) ([]cart.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.cartLines(userID)
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].CreatedAt.Equal(lines[j].CreatedAt) {
			return lines[i].CreatedAt.Before(lines[j].CreatedAt)
		}
		return lines[i].MenuItemID < lines[j].MenuItemID
	})
	return lines, nil
}

func (s *Store) cartLines(userID int64) []cart.CartLine {
	lines := make([]cart.CartLine, 0, len(s.carts[userID]))
	for _, l := range s.carts[userID] {
		lines = append(lines, l)
	}
	return lines
}

// -- order.Repository --

// Checkout builds the order off to the side and publishes it together
// with the cart deletion only after every step has passed.
func (s *Store) Checkout(_ context.Context, userID int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.step(StepLockCart); err != nil {
		return nil, err
	}
	lines := s.cartLines(userID)
	sort.Slice(lines, func(i, j int) bool { return lines[i].MenuItemID < lines[j].MenuItemID })

	o, err := order.NewFromCart(userID, lines)
	if err != nil {
		return nil, err
	}

	if err := s.step(StepInsertOrder); err != nil {
		return nil, err
	}
	now := s.now()
	o.ID = s.nextID + 1
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := s.step(StepInsertLines); err != nil {
		return nil, err
	}
	if err := s.step(StepDeleteCart); err != nil {
		return nil, err
	}
	if err := s.step(StepCommit); err != nil {
		return nil, err
	}

	s.nextID = o.ID
	s.orders[o.ID] = o.Clone()
	delete(s.carts, userID)
	return o, nil
}

func (s *Store) GetByID(_ context.Context, orderID int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *Store) List(_ context.Context, filter order.ListFilter) ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*order.Order{}
	for _, o := range s.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.DeliveryCrewID != nil && !o.IsAssignedTo(*filter.DeliveryCrewID) {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) Save(_ context.Context, o *order.Order, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[o.ID]
	if !ok || stored.Version != expectedVersion {
		return apperr.ErrConflict
	}

	o.Version = expectedVersion + 1
	o.UpdatedAt = s.now()
	stored.Status = o.Status
	stored.DeliveryCrewID = o.Clone().DeliveryCrewID
	stored.Version = o.Version
	stored.UpdatedAt = o.UpdatedAt
	return nil
}

func (s *Store) step(st Step) error {
	if s.fault == nil {
		return nil
	}
	if err := s.fault(st); err != nil {
		return fmt.Errorf("%w: %s: %w", order.ErrFailedCheckout, st, err)
	}
	return nil
}
