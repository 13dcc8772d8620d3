package server

import (
	"encoding/json"
	"net/http"

	"github.com/mayhapottabi/docchat/internal/errs"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a pipeline error to a status code and the text shown to
// the caller. Only client errors expose their own message; everything else
// gets fallback.
func statusFor(err error, fallback string) (int, string) {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindUnextractable:
		return http.StatusBadRequest, errs.Message(err, fallback)
	case errs.KindExtraction:
		return http.StatusBadRequest, "Could not read PDF file"
	case errs.KindNotFound:
		return http.StatusNotFound, "Document not found"
	default:
		return http.StatusInternalServerError, fallback
	}
}

// fail logs err and writes the mapped JSON error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := statusFor(err, fallback)
	attrs := []any{"method", r.Method, "path", r.URL.Path, "kind", errs.KindOf(err), "error", err}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", attrs...)
	} else {
		s.logger.InfoContext(r.Context(), "request rejected", attrs...)
	}
	writeError(w, status, msg)
}
