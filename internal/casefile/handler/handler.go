package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/casefile/service"
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

func (h *Handler) Routes(r chi.Router) {
	r.Post("/cases", h.create)
	r.Get("/cases/{caseID}", h.get)
}

type createRequest struct {
	Name       string `json:"case_name"`
	Department string `json:"department"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	actor := requestcontext.Actor(r.Context())
	c, err := h.svc.Create(r.Context(), actor, req.Name, req.Department)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.svc.Get(r.Context(), requestcontext.Actor(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}
