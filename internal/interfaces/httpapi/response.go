package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/matchup-parser/internal/domain/matchup"
	"github.com/riskibarqy/matchup-parser/internal/usecase"
)

// errorResponse is the only failure shape handlers emit. Raw carries
// the untouched model text when a parse stage failed on it.
type errorResponse struct {
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	ctx, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	ctx, span := startSpan(ctx, "httpapi.writeSuccess")
	defer span.End()

	writeJSON(ctx, w, status, payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ctx, span := startSpan(ctx, "httpapi.writeError")
	defer span.End()

	body := errorResponse{Error: err.Error()}
	if raw, ok := matchup.RawText(err); ok {
		body.Raw = raw
	}
	writeJSON(ctx, w, statusForError(err), body)
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	ctx, span := startSpan(ctx, "httpapi.writeInternalError")
	defer span.End()

	writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrUpstreamUnavailable),
		errors.Is(err, matchup.ErrExtractionFailed),
		errors.Is(err, matchup.ErrSchemaInvalid),
		errors.Is(err, matchup.ErrNonNumericScore):
		return http.StatusBadGateway
	case errors.Is(err, usecase.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
