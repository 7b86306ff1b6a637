package order

import "time"

type LineResponse struct {
	MenuItemID int64  `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	LineTotal  string `json:"line_total"`
}

type OrderResponse struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	DeliveryCrewID *int64         `json:"delivery_crew_id"`
	Status         string         `json:"status"`
	Total          string         `json:"total"`
	Version        int64          `json:"version"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
	Lines          []LineResponse `json:"lines"`
}

func ToResponse(o *Order) OrderResponse {
	lines := make([]LineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, LineResponse{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice.StringFixed(2),
			LineTotal:  l.LineTotal.StringFixed(2),
		})
	}

	return OrderResponse{
		ID:             o.ID,
		UserID:         o.UserID,
		DeliveryCrewID: o.DeliveryCrewID,
		Status:         o.Status.String(),
		Total:          o.Total.StringFixed(2),
		Version:        o.Version,
		CreatedAt:      formatTime(o.CreatedAt),
		UpdatedAt:      formatTime(o.UpdatedAt),
		Lines:          lines,
	}
}

func ToResponses(orders []*Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToResponse(o))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
