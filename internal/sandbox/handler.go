package sandbox

import (
	"context"
	"net/http"

	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
	"github.com/frahmantamala/upi-sandbox/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*upi.Order, error)
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*upi.Payment, error)
	GetPayment(ctx context.Context, id string) (*upi.Payment, error)
	PurgePayment(ctx context.Context, id string) error
	ReceiveWebhook(ctx context.Context, webhook upi.WebhookEvent) upi.WebhookAck
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// Routes mounts the sandbox API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Post("/payments", h.CreatePayment)
	r.Get("/payments/{id}", h.GetPayment)
	r.Delete("/payments/{id}", h.PurgePayment)
	r.Post("/webhook/payment", h.ReceiveWebhook)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Logger.Warn("CreateOrder: invalid request body", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	order, err := h.Service.CreateOrder(r.Context(), req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, order)
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Logger.Warn("CreatePayment: invalid request body", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	payment, err := h.Service.CreatePayment(r.Context(), req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, payment)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.Service.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, payment)
}

func (h *Handler) PurgePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.PurgePayment(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	var webhook upi.WebhookEvent
	if err := h.DecodeJSON(r, &webhook); err != nil {
		h.Logger.Warn("ReceiveWebhook: invalid request body", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, h.Service.ReceiveWebhook(r.Context(), webhook))
}
