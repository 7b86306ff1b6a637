package cart

import "time"

type LineResponse struct {
	MenuItemID int64  `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	LineTotal  string `json:"line_total"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

type CartResponse struct {
	UserID int64          `json:"user_id"`
	Lines  []LineResponse `json:"lines"`
	Total  string         `json:"total"`
}

func ToLineResponse(l CartLine) LineResponse {
	var updatedAt string
	if !l.UpdatedAt.IsZero() {
		updatedAt = l.UpdatedAt.Format(time.RFC3339)
	}
	return LineResponse{
		MenuItemID: l.MenuItemID,
		Quantity:   l.Quantity,
		UnitPrice:  l.UnitPrice.StringFixed(2),
		LineTotal:  l.LineTotal.StringFixed(2),
		UpdatedAt:  updatedAt,
	}
}

func ToResponse(c *Cart) CartResponse {
	lines := make([]LineResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, ToLineResponse(l))
	}
	return CartResponse{
		UserID: c.UserID,
		Lines:  lines,
		Total:  c.Total.StringFixed(2),
	}
}
