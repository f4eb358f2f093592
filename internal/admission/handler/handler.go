package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/admission/models"
	"custodia/internal/admission/service"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// PublicRoutes are reachable without authentication: the intake form is
// submitted before an account exists.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/access-requests", h.submit)
}

// ReviewRoutes require an authenticated reviewer.
func (h *Handler) ReviewRoutes(r chi.Router) {
	r.Get("/access-requests", h.list)
	r.Post("/access-requests/{requestID}/approve", h.approve)
	r.Post("/access-requests/{requestID}/deny", h.deny)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var sub models.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	req, err := h.svc.Submit(r.Context(), sub)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	reviewer := requestcontext.Actor(r.Context())
	requests, err := h.svc.List(r.Context(), reviewer, r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

type reviewRequest struct {
	Role  string `json:"role"`
	Notes string `json:"notes"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	var role domain.Role
	if body.Role != "" {
		role, err = domain.ParseRole(body.Role)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	result, err := h.svc.Approve(r.Context(), requestcontext.Actor(r.Context()), id, role, body.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	req, err := h.svc.Deny(r.Context(), requestcontext.Actor(r.Context()), id, body.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}
