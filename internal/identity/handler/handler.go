package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/identity/service"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/httputil"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/login", h.login)
}

type loginRequest struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.Username == "" || req.Secret == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "username and secret are required"))
		return
	}
	result, err := h.svc.Authenticate(r.Context(), req.Username, req.Secret)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
