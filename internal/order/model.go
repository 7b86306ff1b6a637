package order

import (
	"time"

	"littlelemon/internal/apperr"
	"littlelemon/internal/cart"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusOutForDelivery, StatusDelivered:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", apperr.ErrInvalidStatus
	}
	return s, nil
}

// ValidateTarget accepts only the post-Pending statuses. Adjacency is not
// enforced: Pending may move straight to Delivered.
func ValidateTarget(target Status) error {
	switch target {
	case StatusPreparing, StatusOutForDelivery, StatusDelivered:
		return nil
	}
	return apperr.ErrInvalidStatus
}

type Order struct {
	ID             int64
	UserID         int64
	DeliveryCrewID *int64
	Status         Status
	Total          decimal.Decimal
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []OrderLine
}

type OrderLine struct {
	MenuItemID int64
	Quantity   int
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
}

// NewFromCart snapshots cart lines into a Pending order. Prices are
// copied as captured on the cart; nothing is re-read from the catalog.
func NewFromCart(userID int64, lines []cart.CartLine) (*Order, error) {
	if len(lines) == 0 {
		return nil, apperr.ErrEmptyCart
	}

	o := &Order{
		UserID:  userID,
		Status:  StatusPending,
		Total:   cart.SumLineTotals(lines),
		Version: 1,
		Lines:   make([]OrderLine, 0, len(lines)),
	}
	for _, l := range lines {
		o.Lines = append(o.Lines, OrderLine{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			LineTotal:  l.LineTotal,
		})
	}
	return o, nil
}

func (o *Order) IsAssignedTo(userID int64) bool {
	return o.DeliveryCrewID != nil && *o.DeliveryCrewID == userID
}

// TransitionTo moves the order to target.
func (o *Order) TransitionTo(target Status) error {
	if err := ValidateTarget(target); err != nil {
		return err
	}
	if o.Status.IsTerminal() {
		return apperr.ErrOrderClosed
	}
	o.Status = target
	return nil
}

// AssignCrew records the crew member and, on a Pending order, starts
// preparation. This is the only place assignment changes status.
func (o *Order) AssignCrew(crewID int64) error {
	if o.Status.IsTerminal() {
		return apperr.ErrOrderClosed
	}
	id := crewID
	o.DeliveryCrewID = &id
	if o.Status == StatusPending {
		o.Status = StatusPreparing
	}
	return nil
}

// RemoveCrew clears the assignment and leaves status as is.
func (o *Order) RemoveCrew() error {
	if o.Status.IsTerminal() {
		return apperr.ErrOrderClosed
	}
	o.DeliveryCrewID = nil
	return nil
}

// Clone returns a deep copy so callers can mutate without touching
// the stored value.
func (o *Order) Clone() *Order {
	c := *o
	if o.DeliveryCrewID != nil {
		id := *o.DeliveryCrewID
		c.DeliveryCrewID = &id
	}
	c.Lines = append([]OrderLine(nil), o.Lines...)
	return &c
}

// ListFilter scopes List. A nil field means no restriction on it.
type ListFilter struct {
	UserID         *int64
	DeliveryCrewID *int64
}
