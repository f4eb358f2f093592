package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/evidence/models"
	"custodia/internal/evidence/service"
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
	r.Post("/evidence", h.create)
	r.Get("/evidence/{evidenceID}", h.get)
	r.Patch("/evidence/{evidenceID}/status", h.updateStatus)
	r.Patch("/evidence/{evidenceID}/damaged", h.setDamaged)
	r.Delete("/evidence/{evidenceID}", h.delete)
	r.Post("/evidence/{evidenceID}/transfers", h.appendTransfer)
	r.Get("/evidence/{evidenceID}/transfers", h.listTransfers)
}

type createRequest struct {
	CaseID           string            `json:"case_id"`
	OriginDepartment string            `json:"origin_department"`
	Attributes       models.Attributes `json:"attributes"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	caseID, err := domain.ParseCaseID(req.CaseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor := requestcontext.Actor(r.Context())
	item, err := h.svc.Create(r.Context(), actor, caseID, req.Attributes, req.OriginDepartment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	item, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	item, err := h.svc.UpdateStatus(r.Context(), actor, id, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

type damagedRequest struct {
	Damaged bool `json:"damaged"`
}

func (h *Handler) setDamaged(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req damagedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	item, err := h.svc.SetDamaged(r.Context(), actor, id, req.Damaged)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	FromDepartment string `json:"from_department"`
	ToDepartment   string `json:"to_department"`
	Notes          string `json:"notes"`
}

func (h *Handler) appendTransfer(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	result, err := h.svc.AppendTransfer(r.Context(), actor, id, req.FromDepartment, req.ToDepartment, req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) listTransfers(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	transfers, err := h.svc.ListTransfers(r.Context(), actor, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transfers": transfers})
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (domain.Actor, domain.EvidenceID, bool) {
	id, err := domain.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.Actor{}, domain.EvidenceID{}, false
	}
	return requestcontext.Actor(r.Context()), id, true
}
