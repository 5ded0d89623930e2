package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/detect"
	"github.com/okian/rollcall/internal/domain/gallery"
	"github.com/okian/rollcall/internal/domain/ledger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// NewKind tags kind with the operation that produced it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags err with op and kind so both stay matchable.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// classify maps an error to an HTTP status and a stable error code. A failed
// refresh is reported as such whatever its cause.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidEvent):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownIdentity):
		return http.StatusNotFound, "unknown_identity"
	case errors.Is(err, service.ErrNotEnrolled):
		return http.StatusUnprocessableEntity, "not_enrolled"
	case errors.Is(err, service.ErrRefreshInProgress):
		return http.StatusConflict, "refresh_in_progress"
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, gallery.ErrRefresh):
		return http.StatusBadGateway, "refresh_failed"
	case errors.Is(err, detect.ErrUnavailable):
		return http.StatusServiceUnavailable, "detector_unavailable"
	case errors.Is(err, ledger.ErrLedgerWrite), errors.Is(err, ledger.ErrLedgerRead):
		return http.StatusServiceUnavailable, "ledger_unavailable"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_started"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
