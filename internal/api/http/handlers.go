// Package http exposes the REST surface: item management for authors,
// session delivery for candidates.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/open-assess/qtiproc/internal/auth"
	"github.com/open-assess/qtiproc/internal/qti/parser"
	"github.com/open-assess/qtiproc/internal/session"
	"github.com/open-assess/qtiproc/internal/telemetry"
)

const maxItemBytes = 4 << 20

// POST /items  (body: qti-assessment-item XML)
func ItemCreateHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxItemBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		it, err := svc.CreateItem(r.Context(), body)
		if err != nil {
			var verr *parser.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(it)
	}
}

// GET /items
func ItemListHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.Items(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []session.Item{}
		}
		_ = json.NewEncoder(w).Encode(items)
	}
}

// GET /items/{id}  (?format=xml returns the stored document)
func ItemGetHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		it, err := svc.Item(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if r.URL.Query().Get("format") == "xml" {
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write(it.XML)
			return
		}
		_ = json.NewEncoder(w).Encode(it)
	}
}

// POST /items/{id}/sessions
func SessionCreateHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		candidate := "anonymous"
		if c, ok := auth.ClaimsFrom(r.Context()); ok {
			candidate = c.Sub
		}
		sess, err := svc.StartSession(r.Context(), chi.URLParam(r, "id"), candidate)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		telemetry.SessionsOpen.Inc()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(sess)
	}
}

// GET /sessions/{id}
func SessionGetHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Session(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(sess)
	}
}

// POST /sessions/{id}/attempt  { "responses": { "RESPONSE": {"base": ...} } }
func AttemptHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Responses map[string]json.RawMessage `json:"responses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sess, err := svc.SubmitAttempt(r.Context(), chi.URLParam(r, "id"), req.Responses)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrItemNotFound) {
				writeStoreError(w, err)
				return
			}
			// Processing failures still produced a persisted outcome
			// snapshot; report the attempt with its error.
			telemetry.Attempts.WithLabelValues("error").Inc()
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": sess,
				"error":   err.Error(),
			})
			return
		}
		telemetry.Attempts.WithLabelValues("ok").Inc()
		_ = json.NewEncoder(w).Encode(map[string]any{"session": sess})
	}
}

// POST /sessions/{id}/reset
func SessionResetHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.ResetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(sess)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrItemNotFound) || errors.Is(err, session.ErrSessionNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
