package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"divvy/internal/core"
	"divvy/internal/storage"
)

// clientIP extracts the client address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// writeServiceError maps service and storage errors onto API status codes:
// validation failures are 422, missing records 404, duplicate ids 409.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isValidationError(err):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("record not found").Write(w)
	case errors.Is(err, storage.ErrAlreadyExists):
		ConflictError("record already exists").Write(w)
	case errors.Is(err, errBodyTooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err, "method", r.Method, "path", r.URL.Path)
		InternalServerError("internal error").Write(w)
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrEmptyDescription,
		core.ErrEmptyName,
		core.ErrNoParticipants,
		core.ErrUnknownMember,
		core.ErrSelfSettlement,
		core.ErrSelfTransfer,
		core.ErrInvalidEntryType,
		core.ErrAllocationMismatch,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// moneyOut is the wire form of a money amount.
type moneyOut struct {
	Cents   int64  `json:"cents"`
	Display string `json:"display"`
}

func outMoney(m core.Money) moneyOut {
	return moneyOut{Cents: m.Cents, Display: m.String()}
}

func outTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func outTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := outTime(*t)
	return &s
}
