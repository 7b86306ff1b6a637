package order

import (
	"context"
	"errors"
	"time"

	"littlelemon/internal/apperr"
	"littlelemon/internal/identity"
	"littlelemon/internal/logger"
	"littlelemon/internal/metrics"
	"littlelemon/internal/notification"
	"littlelemon/internal/policy"

	"go.uber.org/zap"
)

type Service interface {
	Checkout(ctx context.Context, userID int64) (*Order, error)
	SetStatus(ctx context.Context, actorID, orderID int64, status Status) (*Order, error)
	AssignDeliveryCrew(ctx context.Context, actorID, orderID, crewID int64) (*Order, error)
	RemoveDeliveryCrew(ctx context.Context, actorID, orderID int64) (*Order, error)
	Get(ctx context.Context, actorID, orderID int64) (*Order, error)
	List(ctx context.Context, actorID int64) ([]*Order, error)
}

type service struct {
	repo      Repository
	identity  identity.Gateway
	publisher notification.Publisher
	metrics   *metrics.Registry
	now       func() time.Time
}

func NewService(repo Repository, identityGw identity.Gateway, pub notification.Publisher, m *metrics.Registry) Service {
	if pub == nil {
		pub = notification.NopPublisher{}
	}
	if m == nil {
		m = &metrics.Registry{}
	}
	return &service{
		repo:      repo,
		identity:  identityGw,
		publisher: pub,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *service) Checkout(ctx context.Context, userID int64) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Checkout"),
		zap.Int64("user_id", userID),
	)

	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}

	// The cart always belongs to the caller, so no role lookup is needed.
	decision := policy.Decide(policy.Request{
		ActorID:         userID,
		Action:          policy.ActionCheckout,
		ResourceOwnerID: userID,
	})
	if decision == policy.Deny {
		return nil, apperr.ErrForbidden
	}

	timer := metrics.StartTimer()
	o, err := s.repo.Checkout(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrEmptyCart) {
			s.metrics.EmptyCarts.Inc()
		} else {
			s.metrics.CheckoutsFailed.Inc()
		}
		s.countConflict(err)
		log.Warn("checkout failed", zap.Error(err))
		return nil, err
	}
	s.metrics.ObserveCheckout(timer)

	log.Info("order placed", zap.Int64("order_id", o.ID))
	return o, nil
}

// SetStatus checks, in order: target validity, existence, permission,
// terminal state. A denied actor never learns whether the order is closed.
func (s *service) SetStatus(ctx context.Context, actorID, orderID int64, status Status) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "SetStatus"),
		zap.Int64("actor_id", actorID),
		zap.Int64("order_id", orderID),
		zap.String("status", status.String()),
	)

	if err := ValidateTarget(status); err != nil {
		log.Warn("invalid target status")
		return nil, err
	}

	o, err := s.loadAuthorized(ctx, actorID, orderID, policy.ActionSetStatus)
	if err != nil {
		return nil, err
	}

	expected := o.Version
	old := o.Status
	if err := o.TransitionTo(status); err != nil {
		log.Warn("transition rejected", zap.Error(err))
		return nil, err
	}

	if err := s.save(ctx, o, expected); err != nil {
		return nil, err
	}

	s.notify(ctx, actorID, o, old)
	log.Info("status updated", zap.String("old_status", old.String()))
	return o, nil
}

func (s *service) AssignDeliveryCrew(ctx context.Context, actorID, orderID, crewID int64) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AssignDeliveryCrew"),
		zap.Int64("actor_id", actorID),
		zap.Int64("order_id", orderID),
		zap.Int64("crew_id", crewID),
	)

	o, err := s.loadAuthorized(ctx, actorID, orderID, policy.ActionAssignDeliveryCrew)
	if err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() {
		return nil, apperr.ErrOrderClosed
	}

	isCrew, err := s.identity.RoleOf(ctx, crewID, identity.RoleDeliveryCrew)
	if err != nil {
		log.Error("crew role lookup failed", zap.Error(err))
		return nil, err
	}
	if !isCrew {
		log.Warn("user is not in delivery crew")
		return nil, apperr.ErrNotDeliveryCrew
	}

	expected := o.Version
	old := o.Status
	if err := o.AssignCrew(crewID); err != nil {
		return nil, err
	}

	if err := s.save(ctx, o, expected); err != nil {
		return nil, err
	}

	s.notify(ctx, actorID, o, old)
	log.Info("delivery crew assigned", zap.String("status", o.Status.String()))
	return o, nil
}

func (s *service) RemoveDeliveryCrew(ctx context.Context, actorID, orderID int64) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RemoveDeliveryCrew"),
		zap.Int64("actor_id", actorID),
		zap.Int64("order_id", orderID),
	)

	o, err := s.loadAuthorized(ctx, actorID, orderID, policy.ActionRemoveDeliveryCrew)
	if err != nil {
		return nil, err
	}

	expected := o.Version
	old := o.Status
	if err := o.RemoveCrew(); err != nil {
		return nil, err
	}

	if err := s.save(ctx, o, expected); err != nil {
		return nil, err
	}

	s.notify(ctx, actorID, o, old)
	log.Info("delivery crew removed")
	return o, nil
}

func (s *service) Get(ctx context.Context, actorID, orderID int64) (*Order, error) {
	return s.loadAuthorized(ctx, actorID, orderID, policy.ActionRead)
}

// List returns every order to staff, assigned orders to delivery crew
// and own orders to everyone else. Newest first.
func (s *service) List(ctx context.Context, actorID int64) ([]*Order, error) {
	if actorID == 0 {
		return nil, apperr.ErrUnauthenticated
	}

	roles, err := s.identity.GetRoles(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var filter ListFilter
	switch {
	case roles.IsStaff():
	case roles.Has(identity.RoleDeliveryCrew):
		filter.DeliveryCrewID = &actorID
	default:
		filter.UserID = &actorID
	}

	return s.repo.List(ctx, filter)
}

func (s *service) loadAuthorized(ctx context.Context, actorID, orderID int64, action policy.Action) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.Int64("actor_id", actorID),
		zap.Int64("order_id", orderID),
		zap.String("action", string(action)),
	)

	if actorID == 0 {
		return nil, apperr.ErrUnauthenticated
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	roles, err := s.identity.GetRoles(ctx, actorID)
	if err != nil {
		return nil, err
	}

	decision := policy.Decide(policy.Request{
		ActorID:         actorID,
		ActorRoles:      roles,
		Action:          action,
		ResourceOwnerID: o.UserID,
		AssignedCrewID:  o.DeliveryCrewID,
	})
	if decision == policy.Deny {
		log.Warn("access denied")
		return nil, apperr.ErrForbidden
	}

	return o, nil
}

func (s *service) save(ctx context.Context, o *Order, expected int64) error {
	if err := s.repo.Save(ctx, o, expected); err != nil {
		s.countConflict(err)
		return err
	}
	s.metrics.StatusChanges.Inc()
	return nil
}

func (s *service) countConflict(err error) {
	if errors.Is(err, apperr.ErrConflict) {
		s.metrics.Conflicts.Inc()
	}
}

// notify runs after commit. A failed publish is logged and counted; the
// committed change stands. The event outlives a client that hangs up, so
// the request's cancellation is dropped while its values (request id,
// user id) are kept.
func (s *service) notify(ctx context.Context, actorID int64, o *Order, old Status) {
	ctx = context.WithoutCancel(ctx)

	msg := notification.StatusChanged{
		OrderID:        o.ID,
		OldStatus:      old.String(),
		NewStatus:      o.Status.String(),
		DeliveryCrewID: o.DeliveryCrewID,
		ChangedBy:      actorID,
		Timestamp:      s.now().UTC(),
	}
	if err := s.publisher.PublishStatusChanged(ctx, msg); err != nil {
		s.metrics.PublishFailures.Inc()
		logger.FromCtx(ctx).Warn("status notification dropped",
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}
