package cart

import "errors"

var (
	// -- Database & Operation Failures --
	ErrFailedGetCartLines   = errors.New("failed to get cart lines")
	ErrFailedUpsertCartLine = errors.New("failed to save cart line")
	ErrFailedRemoveCartLine = errors.New("failed to remove cart line")
	ErrFailedClearCart      = errors.New("failed to clear cart")
)
