package catalog

import "errors"

var (
	ErrFailedGetPrice = errors.New("failed to get menu item price")
)
