package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"photopipe/internal/domain"
	"photopipe/internal/middleware"
	"photopipe/internal/pipeline"
)

// ProcessRequest is the body of POST /v1/images.
type ProcessRequest struct {
	Image    string `json:"image"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType,omitempty"`
}

// ProcessResponse is returned for a processed image.
type ProcessResponse struct {
	Message  string                `json:"message"`
	FileName string                `json:"fileName"`
	Results  *pipeline.Result      `json:"results"`
	Record   *domain.ProcessRecord `json:"record,omitempty"`
}

type listResponse struct {
	Success    bool                   `json:"success"`
	Count      int                    `json:"count"`
	Items      []domain.ProcessRecord `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// NewProcessResponse wraps a pipeline result in the response envelope.
func NewProcessResponse(res *pipeline.Result) ProcessResponse {
	return ProcessResponse{
		Message:  "Image processed successfully",
		FileName: res.FileName,
		Results:  res,
		Record:   res.Record,
	}
}

func (a *App) ProcessImage(w http.ResponseWriter, r *http.Request) {
	if a.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxBodyBytes)
	}
	var body ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return
		}
		a.error(w, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}
	res, err := a.Processor.Process(r.Context(), pipeline.Request{
		Image:         body.Image,
		FileName:      body.FileName,
		FileType:      body.FileType,
		ClientCountry: middleware.CountryFromContext(r.Context()),
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, NewProcessResponse(res))
}

func (a *App) ListImages(w http.ResponseWriter, r *http.Request) {
	opts := domain.ListOptions{Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			a.error(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		opts.Limit = limit
	}
	page, err := a.Records.List(r.Context(), opts)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, listResponse{
		Success:    true,
		Count:      len(page.Items),
		Items:      page.Items,
		NextCursor: page.NextCursor,
	})
}

func (a *App) GetImage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		a.error(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}
	rec, err := a.Records.Get(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, rec)
}
