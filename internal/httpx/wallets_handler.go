package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.Svc.GetWalletBalance(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	es, err := h.Svc.ListWalletEntries(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": es})
}

func (h *Handler) verifyWallet(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	if err := h.Svc.VerifyWallet(r.Context(), owner); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner_id": owner, "consistent": true})
}
