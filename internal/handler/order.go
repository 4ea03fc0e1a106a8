package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/middleware"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/service"
)

type orderService interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, shipping model.ShippingAddress, items []service.LineItem, notes string) (*model.Order, error)
	GetOrder(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool) (*model.Order, error)
	ListOrdersForUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, upd model.OrderUpdate, isAdmin bool) (*model.Order, error)
}

// productCache is told which products just had their stock changed.
type productCache interface {
	InvalidateProducts(ctx context.Context, ids ...uuid.UUID)
}

type OrderHandler struct {
	orders   orderService
	products productCache
}

func NewOrderHandler(orders orderService, products productCache) *OrderHandler {
	return &OrderHandler{orders: orders, products: products}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	items := make([]service.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.LineItem{ProductID: it.ProductID, Quantity: it.Quantity, ClientPrice: it.Price})
	}
	shipping := model.ShippingAddress{
		Name:    req.ShippingName,
		Email:   req.ShippingEmail,
		Phone:   req.ShippingPhone,
		Address: req.ShippingAddress,
		City:    req.ShippingCity,
		State:   req.ShippingState,
		Zip:     req.ShippingZip,
		Country: req.ShippingCountry,
	}

	ctx := c.Request.Context()
	order, err := h.orders.PlaceOrder(ctx, middleware.GetUserID(c), shipping, items, req.Notes)
	if err != nil {
		middleware.RecordOrderOperation("place", outcome(err))
		writeError(c, err)
		return
	}
	middleware.RecordOrderOperation("place", "success")

	if h.products != nil {
		ids := make([]uuid.UUID, 0, len(order.Items))
		for _, item := range order.Items {
			ids = append(ids, item.ProductID)
		}
		h.products.InvalidateProducts(ctx, ids...)
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListOrdersForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, dto.OrderListResponse{Orders: items, Total: len(items)})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID, middleware.GetUserID(c), middleware.GetIsAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}
	var req dto.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	upd := model.OrderUpdate{
		PaymentID:     req.PaymentID,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}
	if req.Status != nil {
		status := model.OrderStatus(*req.Status)
		upd.Status = &status
	}

	order, err := h.orders.UpdateOrder(c.Request.Context(), orderID, upd, middleware.GetIsAdmin(c))
	if err != nil {
		middleware.RecordOrderOperation("update_status", outcome(err))
		writeError(c, err)
		return
	}
	middleware.RecordOrderOperation("update_status", "success")
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// outcome labels an error for metrics: caller mistakes are "rejected".
func outcome(err error) string {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrForbidden):
		return "rejected"
	default:
		return "error"
	}
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, dto.OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSKU:  item.ProductSKU,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Subtotal:    item.Subtotal,
		})
	}
	return dto.OrderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		ShippingName:    order.Shipping.Name,
		ShippingEmail:   order.Shipping.Email,
		ShippingPhone:   order.Shipping.Phone,
		ShippingAddress: order.Shipping.Address,
		ShippingCity:    order.Shipping.City,
		ShippingState:   order.Shipping.State,
		ShippingZip:     order.Shipping.Zip,
		ShippingCountry: order.Shipping.Country,
		Subtotal:        order.Subtotal,
		ShippingCost:    order.ShippingCost,
		Tax:             order.Tax,
		Total:           order.Total,
		Status:          string(order.Status),
		PaymentMethod:   order.PaymentMethod,
		PaymentID:       order.PaymentID,
		PaidAt:          order.PaidAt,
		Notes:           order.Notes,
		Items:           items,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}
