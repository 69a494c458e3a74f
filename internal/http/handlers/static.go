package handlers

import (
	"errors"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"photopipe/internal/domain"
	"photopipe/internal/storage"
)

// ServeStatic serves objects of the filesystem store behind signed URLs.
func (a *App) ServeStatic(w http.ResponseWriter, r *http.Request) {
	if a.Files == nil {
		a.error(w, http.StatusNotFound, "not_found", "static files are not served by this backend")
		return
	}
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	q := r.URL.Query()
	if err := a.Files.Verify(bucket, key, q.Get("expires"), q.Get("signature")); err != nil {
		switch {
		case errors.Is(err, storage.ErrSignatureExpired):
			a.error(w, http.StatusForbidden, "expired", "url has expired")
		case errors.Is(err, domain.ErrInvalidRequest):
			a.error(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			a.error(w, http.StatusForbidden, "forbidden", "invalid signature")
		}
		return
	}
	f, err := a.Files.Open(bucket, key)
	if err != nil {
		a.fail(w, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
}
