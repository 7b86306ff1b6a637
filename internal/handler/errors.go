package handler

import (
	"errors"
	"net/http"

	"littlelemon/internal/apperr"
	"littlelemon/internal/logger"
	"littlelemon/internal/utils"

	"go.uber.org/zap"
)

var statusByErr = []struct {
	err  error
	code int
}{
	{apperr.ErrUnauthenticated, http.StatusUnauthorized},
	{apperr.ErrForbidden, http.StatusForbidden},
	{apperr.ErrInvalidQuantity, http.StatusBadRequest},
	{apperr.ErrInvalidStatus, http.StatusBadRequest},
	{apperr.ErrInvalidInput, http.StatusBadRequest},
	{apperr.ErrEmptyCart, http.StatusBadRequest},
	{apperr.ErrNotDeliveryCrew, http.StatusBadRequest},
	{apperr.ErrItemNotFound, http.StatusNotFound},
	{apperr.ErrOrderNotFound, http.StatusNotFound},
	{apperr.ErrOrderClosed, http.StatusConflict},
	{apperr.ErrConflict, http.StatusConflict},
	{apperr.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
}

// StatusFor maps an error from the services to its HTTP status code.
func StatusFor(err error) int {
	for _, m := range statusByErr {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return http.StatusInternalServerError
}

// writeError surfaces taxonomy errors verbatim. Anything else is logged
// and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("unhandled error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		utils.WriteJSONError(w, "internal server error", code)
		return
	}

	if apperr.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	utils.WriteJSONError(w, rootMessage(err), code)
}

// rootMessage returns the sentinel text so wrapped driver detail never
// reaches the client.
func rootMessage(err error) string {
	for _, m := range statusByErr {
		if errors.Is(err, m.err) {
			return m.err.Error()
		}
	}
	return err.Error()
}
