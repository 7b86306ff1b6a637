package order

import "errors"

var (
	ErrFailedCheckout  = errors.New("failed to checkout cart")
	ErrFailedGetOrder  = errors.New("failed to get order")
	ErrFailedGetOrders = errors.New("failed to get orders")
	ErrFailedSaveOrder = errors.New("failed to save order")
)
