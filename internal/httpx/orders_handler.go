package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-course-commerce/internal/commerce"
	"github.com/ariefcatur/go-course-commerce/internal/money"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

const headerIdempotencyKey = "Idempotency-Key"

func (h *Handler) previewOrder(w http.ResponseWriter, r *http.Request) {
	var req commerce.CheckoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Svc.PreviewOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// placeOrder creates a PENDING order. With an Idempotency-Key header a retried
// request returns the order created by the first one.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req commerce.CheckoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	key := r.Header.Get(headerIdempotencyKey)
	useKey := key != "" && h.Idem != nil && req.UserID != ""

	if useKey {
		if id, ok, err := h.Idem.Lookup(ctx, req.UserID, key); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("idempotency lookup failed")
		} else if ok {
			if o, err := h.Svc.GetOrder(ctx, id); err == nil {
				writeJSON(w, http.StatusOK, o)
				return
			}
		}
	}

	o, err := h.Svc.PlaceOrder(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if useKey {
		winner, err := h.Idem.Remember(ctx, req.UserID, key, o.ID)
		switch {
		case err != nil:
			hlog.FromRequest(r).Warn().Err(err).Msg("idempotency store failed")
		case winner != o.ID:
			// lost the race; our order stays PENDING and is never paid
			if first, err := h.Svc.GetOrder(ctx, winner); err == nil {
				writeJSON(w, http.StatusOK, first)
				return
			}
		}
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if h.Status != nil {
		if s, ok, err := h.Status.Get(ctx, id); err == nil && ok {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	o, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, redisx.OrderStatus{OrderID: o.ID, Status: string(o.Status), UpdatedAt: o.UpdatedAt})
}

type paymentReq struct {
	GatewayReference string `json:"gateway_reference"`
	Reason           string `json:"reason"`
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.orderResult(w, r)(h.Svc.ConfirmPayment(r.Context(), chi.URLParam(r, "id"), req.GatewayReference))
}

func (h *Handler) failPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.orderResult(w, r)(h.Svc.FailPayment(r.Context(), chi.URLParam(r, "id"), req.GatewayReference, req.Reason))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.orderResult(w, r)(h.Svc.CancelOrder(r.Context(), chi.URLParam(r, "id"), req.UserID))
}

// orderResult writes the outcome of a status change and refreshes the cache.
func (h *Handler) orderResult(w http.ResponseWriter, r *http.Request) func(orders.Order, error) {
	return func(o orders.Order, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.cacheStatus(r.Context(), o)
		writeJSON(w, http.StatusOK, o)
	}
}

func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount money.Amount `json:"amount"`
		Reason string       `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.RefundOrder(r.Context(), commerce.RefundRequest{
		OrderID: chi.URLParam(r, "id"),
		Amount:  req.Amount,
		Reason:  req.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(r.Context(), res.Order)
	writeJSON(w, http.StatusOK, res)
}
