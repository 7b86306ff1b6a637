package memstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"littlelemon/internal/apperr"
	"littlelemon/internal/cart"
	"littlelemon/internal/catalog"
	"littlelemon/internal/identity"
	"littlelemon/internal/order"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, userID int64) {
	t.Helper()
	ctx := context.Background()
	a, err := cart.NewCartLine(userID, 1, 2, decimal.RequireFromString("12.99"))
	require.NoError(t, err)
	b, err := cart.NewCartLine(userID, 2, 1, decimal.RequireFromString("8.99"))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, a)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, b)
	require.NoError(t, err)
}

func TestStore_Load(t *testing.T) {
	f, err := os.Open("testdata/fixture.json")
	require.NoError(t, err)
	defer f.Close()

	s := New()
	require.NoError(t, s.Load(f))

	ctx := context.Background()
	price, ok, err := s.GetPrice(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12.99", price.StringFixed(2))

	_, ok, err = s.GetPrice(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	isCrew, err := s.RoleOf(ctx, 7, identity.RoleDeliveryCrew)
	require.NoError(t, err)
	assert.True(t, isCrew)

	roles, err := s.GetRoles(ctx, 2)
	require.NoError(t, err)
	assert.True(t, roles.IsStaff())
}

func TestStore_Load_UnknownGroup(t *testing.T) {
	s := New()
	err := s.Load(strings.NewReader(`{"user_groups":[{"user_id":1,"groups":["Chef"]}]}`))
	assert.Error(t, err)
}

func TestStore_GatewayHonoursContext(t *testing.T) {
	s := New()
	s.AddMenuItem(catalog.MenuItem{ID: 1, Price: decimal.RequireFromString("1")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.GetPrice(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	_, err = s.GetRoles(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}

func TestStore_CartLines(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, 1)

	// replace, not increment
	l, _ := cart.NewCartLine(1, 1, 5, decimal.RequireFromString("12.99"))
	saved, err := s.Upsert(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.Quantity)

	lines, err := s.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1), lines[0].MenuItemID)
	assert.Equal(t, 5, lines[0].Quantity)

	require.NoError(t, s.Remove(ctx, 1, 1))
	require.NoError(t, s.Remove(ctx, 1, 1))
	lines, _ = s.ListByUser(ctx, 1)
	assert.Len(t, lines, 1)

	require.NoError(t, s.Clear(ctx, 1))
	require.NoError(t, s.Clear(ctx, 1))
	lines, _ = s.ListByUser(ctx, 1)
	assert.Empty(t, lines)
}

func TestStore_Checkout(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, 1)

	o, err := s.Checkout(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "34.97", o.Total.StringFixed(2))
	assert.Len(t, o.Lines, 2)
	assert.Equal(t, order.StatusPending, o.Status)

	lines, _ := s.ListByUser(ctx, 1)
	assert.Empty(t, lines)

	_, err = s.Checkout(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)

	all, _ := s.List(ctx, order.ListFilter{})
	assert.Len(t, all, 1)
}

func TestStore_Checkout_FaultInjection(t *testing.T) {
	ctx := context.Background()
	injected := errors.New("injected")

	for _, step := range []Step{StepLockCart, StepInsertOrder, StepInsertLines, StepDeleteCart, StepCommit} {
		t.Run(string(step), func(t *testing.T) {
			s := New()
			seed(t, s, 1)
			before, _ := s.ListByUser(ctx, 1)

			s.InjectFault(func(st Step) error {
				if st == step {
					return injected
				}
				return nil
			})

			o, err := s.Checkout(ctx, 1)
			assert.Nil(t, o)
			assert.ErrorIs(t, err, injected)
			assert.ErrorIs(t, err, order.ErrFailedCheckout)

			after, _ := s.ListByUser(ctx, 1)
			assert.Equal(t, before, after)
			orders, _ := s.List(ctx, order.ListFilter{})
			assert.Empty(t, orders)

			// the next clean attempt still works
			s.InjectFault(nil)
			o, err = s.Checkout(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(1), o.ID)
		})
	}
}

func TestStore_Checkout_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, 1)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var placed, empty int

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Checkout(ctx, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, apperr.ErrEmptyCart):
				empty++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, placed)
	assert.Equal(t, workers-1, empty)
	orders, _ := s.List(ctx, order.ListFilter{})
	assert.Len(t, orders, 1)
}

func TestStore_Save_Version(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, 1)
	placed, err := s.Checkout(ctx, 1)
	require.NoError(t, err)

	first, _ := s.GetByID(ctx, placed.ID)
	second, _ := s.GetByID(ctx, placed.ID)

	require.NoError(t, first.AssignCrew(7))
	require.NoError(t, s.Save(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	require.NoError(t, second.TransitionTo(order.StatusDelivered))
	assert.ErrorIs(t, s.Save(ctx, second, 1), apperr.ErrConflict)

	stored, _ := s.GetByID(ctx, placed.ID)
	assert.Equal(t, order.StatusPreparing, stored.Status)
	assert.True(t, stored.IsAssignedTo(7))
}

func TestStore_GetByID_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, 1)
	placed, _ := s.Checkout(ctx, 1)

	o, _ := s.GetByID(ctx, placed.ID)
	o.Status = order.StatusDelivered

	again, _ := s.GetByID(ctx, placed.ID)
	assert.Equal(t, order.StatusPending, again.Status)

	_, err := s.GetByID(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
}

func TestStore_List_Scopes(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, 1)
	seed(t, s, 3)
	o1, _ := s.Checkout(ctx, 1)
	_, _ = s.Checkout(ctx, 3)

	got, _ := s.GetByID(ctx, o1.ID)
	require.NoError(t, got.AssignCrew(7))
	require.NoError(t, s.Save(ctx, got, got.Version))

	owner := int64(3)
	mine, _ := s.List(ctx, order.ListFilter{UserID: &owner})
	require.Len(t, mine, 1)
	assert.Equal(t, int64(3), mine[0].UserID)

	crew := int64(7)
	assigned, _ := s.List(ctx, order.ListFilter{DeliveryCrewID: &crew})
	require.Len(t, assigned, 1)
	assert.Equal(t, o1.ID, assigned[0].ID)

	all, _ := s.List(ctx, order.ListFilter{})
	require.Len(t, all, 2)
	assert.Greater(t, all[0].ID, all[1].ID)
}
