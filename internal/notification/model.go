package notification

import "time"

// StatusChanged is published after an order mutation commits.
type StatusChanged struct {
	OrderID        int64     `json:"order_id"`
	OldStatus      string    `json:"old_status"`
	NewStatus      string    `json:"new_status"`
	DeliveryCrewID *int64    `json:"delivery_crew_id"`
	ChangedBy      int64     `json:"changed_by"`
	Timestamp      time.Time `json:"timestamp"`
}
