package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-course-commerce/internal/commerce"
	"github.com/ariefcatur/go-course-commerce/internal/payout"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) requestPayout(w http.ResponseWriter, r *http.Request) {
	var req commerce.PayoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Svc.RequestPayout(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) getPayout(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.GetPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) listPayouts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Svc.ListPayouts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ps == nil {
		ps = []payout.Request{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payouts": ps})
}

func (h *Handler) payoutResult(w http.ResponseWriter, r *http.Request) func(payout.Request, error) {
	return func(p payout.Request, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (h *Handler) approvePayout(w http.ResponseWriter, r *http.Request) {
	h.payoutResult(w, r)(h.Svc.ApprovePayout(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) processPayout(w http.ResponseWriter, r *http.Request) {
	h.payoutResult(w, r)(h.Svc.ProcessPayout(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) completePayout(w http.ResponseWriter, r *http.Request) {
	h.payoutResult(w, r)(h.Svc.CompletePayout(r.Context(), chi.URLParam(r, "id")))
}

type reasonReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) rejectPayout(w http.ResponseWriter, r *http.Request) {
	var req reasonReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.payoutResult(w, r)(h.Svc.RejectPayout(r.Context(), chi.URLParam(r, "id"), req.Reason))
}

func (h *Handler) failPayout(w http.ResponseWriter, r *http.Request) {
	var req reasonReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.payoutResult(w, r)(h.Svc.FailPayout(r.Context(), chi.URLParam(r, "id"), req.Reason))
}
