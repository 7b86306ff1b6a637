package catalog

import "github.com/shopspring/decimal"

type MenuItem struct {
	ID    int64           `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}
