package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/middleware"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeOrderService struct {
	placeErr    error
	gotShipping model.ShippingAddress
	gotItems    []service.LineItem
	order       *model.Order
	getErr      error
	gotUpdate   model.OrderUpdate
	gotIsAdmin  bool
}

func (f *fakeOrderService) PlaceOrder(_ context.Context, userID uuid.UUID, shipping model.ShippingAddress, items []service.LineItem, notes string) (*model.Order, error) {
	f.gotShipping = shipping
	f.gotItems = items
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	o := *f.order
	o.UserID = userID
	o.Notes = notes
	return &o, nil
}

func (f *fakeOrderService) GetOrder(_ context.Context, _, _ uuid.UUID, isAdmin bool) (*model.Order, error) {
	f.gotIsAdmin = isAdmin
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.order, nil
}

func (f *fakeOrderService) ListOrdersForUser(context.Context, uuid.UUID) ([]model.Order, error) {
	return []model.Order{*f.order}, nil
}

func (f *fakeOrderService) UpdateOrder(_ context.Context, _ uuid.UUID, upd model.OrderUpdate, isAdmin bool) (*model.Order, error) {
	f.gotUpdate = upd
	f.gotIsAdmin = isAdmin
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.order, nil
}

type fakeCache struct{ invalidated []uuid.UUID }

func (f *fakeCache) InvalidateProducts(_ context.Context, ids ...uuid.UUID) {
	f.invalidated = append(f.invalidated, ids...)
}

func sampleOrder() *model.Order {
	productID := uuid.New()
	return &model.Order{
		ID:           uuid.New(),
		OrderNumber:  "ORD-20240315-0A1B2C3D",
		Shipping:     model.ShippingAddress{Name: "Ann", Email: "ann@example.com", Address: "1 Main", City: "X", Country: "US"},
		Subtotal:     decimal.NewFromInt(40),
		ShippingCost: decimal.NewFromInt(10),
		Tax:          decimal.Zero,
		Total:        decimal.NewFromInt(50),
		Status:       model.OrderStatusPending,
		Items: []model.OrderItem{{
			ID: uuid.New(), ProductID: productID, ProductName: "widget", Quantity: 2,
			Price: decimal.NewFromInt(20), Subtotal: decimal.NewFromInt(40),
		}},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func withIdentity(userID uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetIdentity(c, userID, role)
		c.Next()
	}
}

func orderRouter(svc orderService, cache productCache, role string) *gin.Engine {
	h := NewOrderHandler(svc, cache)
	r := gin.New()
	g := r.Group("/orders", withIdentity(uuid.New(), role))
	g.POST("", h.CreateOrder)
	g.GET("", h.ListOrders)
	g.GET("/:id", h.GetOrder)
	g.PUT("/:id", h.UpdateOrder)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func createOrderBody(productID uuid.UUID) map[string]any {
	return map[string]any{
		"shippingName":    "Ann Smith",
		"shippingEmail":   "ann@example.com",
		"shippingAddress": "1 Main St",
		"shippingCity":    "Springfield",
		"shippingCountry": "US",
		"shippingZip":     "12345",
		"items":           []map[string]any{{"productId": productID, "quantity": 2, "price": 20}},
		"notes":           "leave at door",
	}
}

func TestCreateOrder_Created(t *testing.T) {
	svc := &fakeOrderService{order: sampleOrder()}
	cache := &fakeCache{}
	r := orderRouter(svc, cache, model.RoleCustomer)
	productID := uuid.New()

	w, body := doJSON(t, r, http.MethodPost, "/orders", createOrderBody(productID))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ORD-20240315-0A1B2C3D", body["orderNumber"])
	assert.Equal(t, "50", body["total"])
	assert.Equal(t, "10", body["shippingCost"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "leave at door", body["notes"])

	require.Len(t, svc.gotItems, 1)
	assert.Equal(t, productID, svc.gotItems[0].ProductID)
	assert.Equal(t, 2, svc.gotItems[0].Quantity)
	assert.True(t, decimal.NewFromInt(20).Equal(svc.gotItems[0].ClientPrice))
	assert.Equal(t, "12345", svc.gotShipping.Zip)
	assert.Equal(t, []uuid.UUID{svc.order.Items[0].ProductID}, cache.invalidated)
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	productID := uuid.New()
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"empty", service.ErrEmptyOrder, http.StatusBadRequest, "items: order must contain at least one item"},
		{"stock", &service.InsufficientStockError{ProductID: productID, Available: 1, Requested: 2}, http.StatusBadRequest, ""},
		{"missing", &service.ProductNotFoundError{ProductID: productID}, http.StatusNotFound, ""},
		{"internal", errors.New("pq: relation orders does not exist"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeOrderService{placeErr: tt.err}
			cache := &fakeCache{}
			w, body := doJSON(t, orderRouter(svc, cache, model.RoleCustomer), http.MethodPost, "/orders", createOrderBody(productID))

			assert.Equal(t, tt.code, w.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, body["error"])
			}
			assert.Empty(t, cache.invalidated)
		})
	}
}

func TestCreateOrder_StockErrorDetails(t *testing.T) {
	productID := uuid.New()
	svc := &fakeOrderService{placeErr: &service.InsufficientStockError{ProductID: productID, Available: 1, Requested: 2}}

	_, body := doJSON(t, orderRouter(svc, nil, model.RoleCustomer), http.MethodPost, "/orders", createOrderBody(productID))

	assert.Equal(t, productID.String(), body["productId"])
	assert.EqualValues(t, 1, body["available"])
	assert.EqualValues(t, 2, body["requested"])
}

func TestCreateOrder_BadRequest(t *testing.T) {
	svc := &fakeOrderService{order: sampleOrder()}
	r := orderRouter(svc, nil, model.RoleCustomer)

	w, _ := doJSON(t, r, http.MethodPost, "/orders", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := createOrderBody(uuid.New())
	delete(body, "shippingEmail")
	w, _ = doJSON(t, r, http.MethodPost, "/orders", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.gotItems)
}

func TestGetOrder(t *testing.T) {
	order := sampleOrder()

	w, body := doJSON(t, orderRouter(&fakeOrderService{order: order}, nil, model.RoleCustomer),
		http.MethodGet, "/orders/"+order.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.ID.String(), body["id"])

	w, body = doJSON(t, orderRouter(&fakeOrderService{getErr: service.ErrForbidden}, nil, model.RoleCustomer),
		http.MethodGet, "/orders/"+order.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, map[string]any{"error": "forbidden"}, body)

	w, _ = doJSON(t, orderRouter(&fakeOrderService{getErr: service.ErrOrderNotFound}, nil, model.RoleCustomer),
		http.MethodGet, "/orders/"+order.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, orderRouter(&fakeOrderService{order: order}, nil, model.RoleCustomer),
		http.MethodGet, "/orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOrders(t *testing.T) {
	w, body := doJSON(t, orderRouter(&fakeOrderService{order: sampleOrder()}, nil, model.RoleCustomer),
		http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])
}

func TestUpdateOrder(t *testing.T) {
	order := sampleOrder()
	svc := &fakeOrderService{order: order}

	w, _ := doJSON(t, orderRouter(svc, nil, model.RoleAdmin), http.MethodPut, "/orders/"+order.ID.String(),
		map[string]any{"status": "paid", "paymentId": "pi_1"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.gotIsAdmin)
	require.NotNil(t, svc.gotUpdate.Status)
	assert.Equal(t, model.OrderStatusPaid, *svc.gotUpdate.Status)
	assert.Equal(t, "pi_1", *svc.gotUpdate.PaymentID)
	assert.Nil(t, svc.gotUpdate.Notes)

	svc.getErr = &service.ValidationError{Field: "status", Reason: "invalid status transition"}
	w, body := doJSON(t, orderRouter(svc, nil, model.RoleAdmin), http.MethodPut, "/orders/"+order.ID.String(),
		map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "status", body["field"])
}

func TestWriteError_CatalogAndAccount(t *testing.T) {
	tests := map[error]int{
		service.ErrCategoryExists:    http.StatusConflict,
		service.ErrProductExists:     http.StatusConflict,
		service.ErrUserAlreadyExists: http.StatusConflict,
		service.ErrUserNotFound:      http.StatusNotFound,
	}
	for err, code := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeError(c, err)
		assert.Equal(t, code, w.Code, err.Error())
	}
}
