// Package policy decides whether an actor may perform an action on an
// order or cart. Decide is pure: callers resolve roles and ownership
// first and pass them in.
package policy

import "littlelemon/internal/identity"

type Action string

const (
	ActionRead               Action = "read"
	ActionCheckout           Action = "checkout"
	ActionSetStatus          Action = "set_status"
	ActionAssignDeliveryCrew Action = "assign_delivery_crew"
	ActionRemoveDeliveryCrew Action = "remove_delivery_crew"
)

type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

type Request struct {
	ActorID         int64
	ActorRoles      identity.Roles
	Action          Action
	ResourceOwnerID int64
	// AssignedCrewID is nil when no delivery crew is assigned.
	AssignedCrewID *int64
}

func (r Request) isOwner() bool {
	return r.ResourceOwnerID == r.ActorID
}

func (r Request) isAssignedCrew() bool {
	return r.AssignedCrewID != nil && *r.AssignedCrewID == r.ActorID
}

// Decide maps (roles, action, ownership) to Allow or Deny.
//
// Admin and Manager may do everything. A delivery crew member may read
// and set the status of orders assigned to them and nothing else on
// orders. Checkout converts the actor's own cart and is open to every
// role as long as the cart belongs to the actor.
func Decide(req Request) Decision {
	if req.ActorRoles.IsStaff() {
		return Allow
	}

	switch req.Action {
	case ActionRead:
		if req.isOwner() {
			return Allow
		}
		if req.ActorRoles.Has(identity.RoleDeliveryCrew) && req.isAssignedCrew() {
			return Allow
		}
		return Deny

	case ActionCheckout:
		if req.isOwner() {
			return Allow
		}
		return Deny

	case ActionSetStatus:
		if req.ActorRoles.Has(identity.RoleDeliveryCrew) && req.isAssignedCrew() {
			return Allow
		}
		return Deny
	}

	return Deny
}
