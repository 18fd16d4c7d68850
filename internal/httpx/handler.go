package httpx

import (
	"context"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/commerce"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.OrderStatus, bool, error)
	Set(ctx context.Context, s redisx.OrderStatus) error
	Invalidate(ctx context.Context, orderID string) error
}

type Idempotency interface {
	Lookup(ctx context.Context, userID, key string) (string, bool, error)
	Remember(ctx context.Context, userID, key, orderID string) (string, error)
}

// Handler serves the commerce API. Status and Idem are optional; without
// them every read goes to the store and checkout keys are ignored.
type Handler struct {
	Svc    *commerce.Service
	Status StatusCache
	Idem   Idempotency
	Now    func() time.Time
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.placeOrder)
		r.Post("/preview", h.previewOrder)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getOrderStatus)
		r.Post("/{id}/confirm", h.confirmPayment)
		r.Post("/{id}/fail", h.failPayment)
		r.Post("/{id}/cancel", h.cancelOrder)
		r.Post("/{id}/refund", h.refundOrder)
	})
	r.Route("/wallets/{owner}", func(r chi.Router) {
		r.Get("/", h.getBalance)
		r.Get("/entries", h.listEntries)
		r.Post("/verify", h.verifyWallet)
	})
	r.Route("/payouts", func(r chi.Router) {
		r.Post("/", h.requestPayout)
		r.Get("/{id}", h.getPayout)
	})
	r.Get("/instructors/{id}/payouts", h.listPayouts)
	r.Route("/coupons", func(r chi.Router) {
		r.Post("/", h.createCoupon)
		r.Get("/{code}", h.getCoupon)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Post("/payouts/{id}/approve", h.approvePayout)
		r.Post("/payouts/{id}/process", h.processPayout)
		r.Post("/payouts/{id}/complete", h.completePayout)
		r.Post("/payouts/{id}/reject", h.rejectPayout)
		r.Post("/payouts/{id}/fail", h.failPayout)
		r.Post("/settlement/sweep", h.runSweep)
	})
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// cacheStatus writes the order's current status through to the cache. Cache
// failures only cost a later store read.
func (h *Handler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Status == nil {
		return
	}
	err := h.Status.Set(ctx, redisx.OrderStatus{OrderID: o.ID, Status: string(o.Status), UpdatedAt: o.UpdatedAt})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", o.ID).Msg("status cache write failed")
	}
}
