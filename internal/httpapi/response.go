package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/auth"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/charter"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/fetch"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/marketplace"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/requestid"
)

const (
	msgInternal         = "Internal Server Error"
	msgBadSearch        = "Invalid search parameters. Please check your filters and try again."
	msgAuthFailed       = "Authentication failed. Please try again."
	msgCompanyForbidden = "Company not authorized. Please check your company registration."
	msgTooManyRequests  = "Too many requests. Please wait a moment and try again."
	msgNotFound         = "Listing not found."
)

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes payload before touching the response so an encoding
// failure still yields a JSON 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encode response", "status", status, "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{Error: msgInternal})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// mapError turns a service error into a status and a message safe to show
// to the caller.
func mapError(err error) (int, string) {
	var (
		inputErr  *charter.InputError
		authErr   *auth.Error
		marketErr *marketplace.Error
	)
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, inputErr.Message
	case errors.Is(err, charter.ErrInvalidInput):
		return http.StatusBadRequest, msgBadSearch
	case errors.As(err, &authErr):
		if authErr.Stage == auth.StageExchange {
			switch authErr.StatusCode {
			case http.StatusUnauthorized:
				return http.StatusUnauthorized, msgAuthFailed
			case http.StatusForbidden:
				return http.StatusForbidden, msgCompanyForbidden
			}
		}
		return http.StatusInternalServerError, msgInternal
	case errors.As(err, &marketErr):
		return mapMarketplaceError(marketErr)
	case errors.Is(err, charter.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func mapMarketplaceError(err *marketplace.Error) (int, string) {
	switch err.StatusCode {
	case http.StatusBadRequest:
		if err.Message != "" {
			return http.StatusBadRequest, err.Message
		}
		return http.StatusBadRequest, msgBadSearch
	case http.StatusUnauthorized:
		return http.StatusUnauthorized, msgAuthFailed
	case http.StatusForbidden:
		return http.StatusForbidden, msgCompanyForbidden
	case http.StatusNotFound:
		return http.StatusNotFound, msgNotFound
	case http.StatusTooManyRequests:
		return http.StatusTooManyRequests, msgTooManyRequests
	case 0:
		return http.StatusInternalServerError, msgInternal
	default:
		return http.StatusInternalServerError, fmt.Sprintf("API request failed with status %d", err.StatusCode)
	}
}

// writeServiceError logs err and writes its mapped response.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, message := mapError(err)
	attrs := []any{
		"op", op,
		"status", status,
		"error", err,
		"transient", fetch.IsTransient(err),
		"request_id", requestid.FromContext(ctx),
	}
	switch {
	case errors.Is(err, fetch.ErrTimeout):
		h.logger.Error("downstream timeout", attrs...)
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed", attrs...)
	default:
		h.logger.Warn("request rejected", attrs...)
	}
	writeError(w, status, message)
}
