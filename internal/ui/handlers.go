package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "heart-risk-dashboard/internal/common/errors"
	"heart-risk-dashboard/internal/form"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"time":     time.Now().Format(time.RFC3339),
		"sessions": s.registry.Len(),
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.schema.PayloadJSONSchema())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())
	s.renderPage(w, http.StatusOK, ctrl.Snapshot(), nil)
}

func (s *Server) handleFieldChange(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())
	key := chi.URLParam(r, "key")

	if err := r.ParseForm(); err != nil {
		s.renderPage(w, http.StatusBadRequest, ctrl.Snapshot(), map[string]string{key: "could not read the submitted form"})
		return
	}
	raw := r.PostFormValue("value")
	if raw == "" {
		raw = r.PostFormValue(key)
	}

	state, err := ctrl.ChangeField(key, raw)
	if err != nil {
		s.renderPage(w, apperrors.HTTPStatus(apperrors.CodeOf(err)), state, fieldErrors(key, err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handlePredict applies every posted field, then starts a submission and
// redirects to the page, which shows the busy indicator until the request
// settles. Field errors stop the submission.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())

	if err := r.ParseForm(); err != nil {
		s.renderPage(w, http.StatusBadRequest, ctrl.Snapshot(), nil)
		return
	}

	errs := map[string]string{}
	for _, key := range s.schema.Keys() {
		raw, ok := r.PostForm[key]
		if !ok || len(raw) == 0 {
			continue
		}
		if _, err := ctrl.ChangeField(key, raw[0]); err != nil {
			errs[key] = message(err)
		}
	}
	if len(errs) > 0 {
		s.renderPage(w, http.StatusBadRequest, ctrl.Snapshot(), errs)
		return
	}

	s.background.Add(1)
	done := ctrl.Start(context.WithoutCancel(r.Context()))
	go func() {
		defer s.background.Done()
		<-done
	}()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	controllerFrom(r.Context()).DismissNotice()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())
	writeJSON(w, http.StatusOK, stateView(s.schema, ctrl.Snapshot(), s.gallery))
}

type fieldRequest struct {
	Value json.RawMessage `json:"value"`
}

func (s *Server) handleAPIFieldChange(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())
	key := chi.URLParam(r, "key")

	var req fieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewInvalidFieldValueError(key, fmt.Errorf("decode body: %w", err)))
		return
	}
	raw, err := rawValue(req.Value)
	if err != nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewInvalidFieldValueError(key, err))
		return
	}

	state, err := ctrl.ChangeField(key, raw)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateView(s.schema, state, s.gallery))
}

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())

	state, err := ctrl.Submit(r.Context())
	view := stateView(s.schema, state, s.gallery)
	status := http.StatusOK
	if err != nil {
		view.Error = apperrors.Normalize(err)
		status = apperrors.HTTPStatus(view.Error.Code)
	}
	writeJSON(w, status, view)
}

func (s *Server) handleAPIDismiss(w http.ResponseWriter, r *http.Request) {
	state := controllerFrom(r.Context()).DismissNotice()
	writeJSON(w, http.StatusOK, stateView(s.schema, state, s.gallery))
}

func (s *Server) renderPage(w http.ResponseWriter, status int, st form.State, fieldErrs map[string]string) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", pageView(s.schema, st, s.gallery, fieldErrs)); err != nil {
		s.logger.Error("Template error", map[string]interface{}{"error": err})
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// rawValue accepts a JSON string or number and returns its text.
func rawValue(v json.RawMessage) (string, error) {
	text := strings.TrimSpace(string(v))
	if text == "" || text == "null" {
		return "", fmt.Errorf("value is required")
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", fmt.Errorf("decode value: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", fmt.Errorf("value must be a string or number")
	}
	return n.String(), nil
}

func fieldErrors(key string, err error) map[string]string {
	if apperrors.CodeOf(err) == apperrors.ErrCodeUnknownField {
		return nil
	}
	return map[string]string{key: message(err)}
}

func message(err error) string {
	stdErr := apperrors.Normalize(err)
	if stdErr.Details != "" {
		return stdErr.Details
	}
	return stdErr.Message
}
