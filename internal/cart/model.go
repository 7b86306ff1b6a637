package cart

import (
	"time"

	"littlelemon/internal/apperr"

	"github.com/shopspring/decimal"
)

// CartLine is one (user, menu item) entry. UnitPrice is the catalog price
// captured when the line was written; checkout never re-prices it.
type CartLine struct {
	UserID     int64
	MenuItemID int64
	Quantity   int
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewCartLine computes LineTotal from unitPrice and quantity so the two
// can never drift apart.
func NewCartLine(userID, menuItemID int64, quantity int, unitPrice decimal.Decimal) (CartLine, error) {
	if quantity < 1 {
		return CartLine{}, apperr.ErrInvalidQuantity
	}
	return CartLine{
		UserID:     userID,
		MenuItemID: menuItemID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		LineTotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// Cart is a read snapshot of a user's lines plus the grand total.
type Cart struct {
	UserID int64
	Lines  []CartLine
	Total  decimal.Decimal
}

func NewCart(userID int64, lines []CartLine) *Cart {
	if lines == nil {
		lines = []CartLine{}
	}
	return &Cart{
		UserID: userID,
		Lines:  lines,
		Total:  SumLineTotals(lines),
	}
}

func SumLineTotals(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return total
}
