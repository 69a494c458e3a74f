package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"photopipe/internal/domain"
	"photopipe/internal/infra"
	"photopipe/internal/pipeline"
	"photopipe/internal/storage"
)

// ImageProcessor runs one submission through the pipeline.
type ImageProcessor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// App carries the dependencies shared by the HTTP handlers.
type App struct {
	Processor    ImageProcessor
	Records      domain.RecordStore
	Files        *storage.FileStore
	Logger       infra.Logger
	MaxBodyBytes int64
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

// fail maps domain errors onto HTTP statuses.
func (a *App) fail(w http.ResponseWriter, err error) {
	code, errCode := StatusFor(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		a.Logger.Error().Err(err).Msg("request failed")
		message = "internal server error"
	}
	a.error(w, code, errCode, message)
}

// StatusFor returns the HTTP status and error code for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrBucketNotFound),
		errors.Is(err, domain.ErrTransient),
		errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway, "upstream_failure"
	}
	return http.StatusInternalServerError, "internal"
}
