package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"avatarcast/internal/app/pipeline"
	"avatarcast/pkg/slg"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, &errorResponse{Success: false, Error: msg})
}

// statusFor maps service errors to a status and a message safe to show to clients.
// fallback is used for failures of the external capabilities.
func statusFor(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyText):
		return http.StatusBadRequest, "No text provided"
	case errors.Is(err, pipeline.ErrEmptyFilename):
		return http.StatusBadRequest, "Empty filename"
	case errors.Is(err, pipeline.ErrInvalidImage):
		return http.StatusBadRequest, "Invalid image"
	case errors.Is(err, pipeline.ErrMissingInput):
		return http.StatusBadRequest, "Missing avatar or audio"
	case errors.Is(err, pipeline.ErrUnknownAsset):
		return http.StatusBadRequest, "Unknown scene asset"
	case errors.Is(err, pipeline.ErrRunNotFound):
		return http.StatusNotFound, "Run not found"
	case errors.Is(err, pipeline.ErrNoVideo):
		return http.StatusInternalServerError, "Video not generated"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	default:
		return http.StatusInternalServerError, fallback
	}
}

func (api *API) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := statusFor(err, fallback)
	logger := slg.GetSlog(r.Context(), api.logger)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		logger.Info("bad request", "path", r.URL.Path, "err", err)
	}

	writeError(w, status, msg)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()

	return json.NewDecoder(r.Body).Decode(v)
}
