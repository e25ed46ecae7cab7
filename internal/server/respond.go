package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
)

// envelope is the uniform response shape: {"success": true, "data": ...}
// on the happy path, {"success": false, "error": ...} otherwise.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		logging.Error(r.Context(), "unhandled error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		appErr = apperrors.WrapInternal(err, "internal server error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error: &errorBody{
			Kind:    string(appErr.Kind),
			Message: appErr.Message,
		},
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperrors.New(apperrors.KindValidation, "invalid request body")
	}
	return nil
}
