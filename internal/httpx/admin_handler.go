package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/coupon"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var c coupon.Coupon
	if err := decode(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Svc.CreateCoupon(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.GetCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// runSweep settles everything due at as_of, or now when it is omitted.
func (h *Handler) runSweep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AsOf *time.Time `json:"as_of"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	asOf := h.now().UTC()
	if req.AsOf != nil {
		asOf = req.AsOf.UTC()
	}
	n, err := h.Svc.RunSettlementSweep(r.Context(), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settled": n, "as_of": asOf})
}
