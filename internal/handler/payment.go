package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/middleware"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/service"
)

const maxWebhookBody = 1 << 20

type paymentService interface {
	CreateIntent(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool, provider string) (*model.PaymentIntent, error)
	HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) error
	PaymentEvents(ctx context.Context, orderID uuid.UUID, isAdmin bool) ([]model.PaymentEvent, error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	var req dto.CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	intent, err := h.payments.CreateIntent(c.Request.Context(), req.OrderID,
		middleware.GetUserID(c), middleware.GetIsAdmin(c), req.Provider)
	if err != nil {
		middleware.RecordOrderOperation("payment_intent", outcome(err))
		writeError(c, err)
		return
	}
	middleware.RecordOrderOperation("payment_intent", "success")

	c.JSON(http.StatusCreated, dto.PaymentIntentResponse{
		Provider:     intent.Provider,
		PaymentID:    intent.ExternalID,
		ClientSecret: intent.ClientSecret,
		RedirectURL:  intent.RedirectURL,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
	})
}

// Webhook acknowledges every authenticated callback, even when applying it
// fails, so the provider does not keep retrying.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	// A truncated body would only fail signature checks.
	if len(payload) > maxWebhookBody {
		middleware.RecordOrderOperation("webhook", "rejected")
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}

	err = h.payments.HandleWebhook(c.Request.Context(), c.Param("provider"), payload, c.Request.Header)
	if err != nil {
		if errors.Is(err, service.ErrInvalidWebhook) || errors.Is(err, service.ErrUnsupportedProvider) {
			middleware.RecordOrderOperation("webhook", "rejected")
			writeError(c, err)
			return
		}
		_ = c.Error(err)
	}
	middleware.RecordOrderOperation("webhook", "success")
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentHandler) ListEvents(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	events, err := h.payments.PaymentEvents(c.Request.Context(), orderID, middleware.GetIsAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]dto.PaymentEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, dto.PaymentEventResponse{
			Provider:  e.Provider,
			EventID:   e.EventID,
			PaymentID: e.PaymentID,
			Status:    string(e.Status),
			Outcome:   e.Outcome,
			Error:     e.Error,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": resp})
}
