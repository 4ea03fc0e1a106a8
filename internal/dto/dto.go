package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Auth ---

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
}

// --- Product ---

type CreateProductRequest struct {
	SKU         string          `json:"sku" binding:"required"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	Stock       int             `json:"stock" binding:"min=0"`
	IsActive    *bool           `json:"isActive"`
	IsFeatured  bool            `json:"isFeatured"`
	CategoryID  *uuid.UUID      `json:"categoryId"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	IsActive    *bool            `json:"isActive"`
	IsFeatured  *bool            `json:"isFeatured"`
	CategoryID  *uuid.UUID       `json:"categoryId"`
}

type ListProductsRequest struct {
	Page       int    `form:"page,default=1" binding:"min=1"`
	Limit      int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search     string `form:"search"`
	Sort       string `form:"sort,default=created_at" binding:"oneof=name price created_at"`
	Order      string `form:"order,default=desc" binding:"oneof=asc desc"`
	CategoryID string `form:"categoryId" binding:"omitempty,uuid"`
	IsActive   *bool  `form:"isActive"` // nil lists active products only
	IsFeatured *bool  `form:"isFeatured"`
}

type ProductResponse struct {
	ID          uuid.UUID       `json:"id"`
	SKU         string          `json:"sku"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsActive    bool            `json:"isActive"`
	IsFeatured  bool            `json:"isFeatured"`
	CategoryID  *uuid.UUID      `json:"categoryId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// --- Category ---

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" binding:"omitempty,url"`
}

type CategoryResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type CartResponse struct {
	Items      []CartItemResponse `json:"items"`
	Subtotal   decimal.Decimal    `json:"subtotal"`
	TotalItems int                `json:"totalItems"`
}

type CartItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// --- Order ---

type CreateOrderRequest struct {
	ShippingName    string                   `json:"shippingName" binding:"required"`
	ShippingEmail   string                   `json:"shippingEmail" binding:"required,email"`
	ShippingPhone   string                   `json:"shippingPhone"`
	ShippingAddress string                   `json:"shippingAddress" binding:"required"`
	ShippingCity    string                   `json:"shippingCity" binding:"required"`
	ShippingState   string                   `json:"shippingState"`
	ShippingZip     string                   `json:"shippingZip"`
	ShippingCountry string                   `json:"shippingCountry" binding:"required"`
	Items           []CreateOrderItemRequest `json:"items"`
	Notes           string                   `json:"notes"`
}

type CreateOrderItemRequest struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type UpdateOrderRequest struct {
	Status        *string `json:"status"`
	PaymentID     *string `json:"paymentId"`
	PaymentMethod *string `json:"paymentMethod"`
	Notes         *string `json:"notes"`
}

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"orderNumber"`
	UserID          uuid.UUID           `json:"userId"`
	ShippingName    string              `json:"shippingName"`
	ShippingEmail   string              `json:"shippingEmail"`
	ShippingPhone   string              `json:"shippingPhone,omitempty"`
	ShippingAddress string              `json:"shippingAddress"`
	ShippingCity    string              `json:"shippingCity"`
	ShippingState   string              `json:"shippingState,omitempty"`
	ShippingZip     string              `json:"shippingZip,omitempty"`
	ShippingCountry string              `json:"shippingCountry"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	ShippingCost    decimal.Decimal     `json:"shippingCost"`
	Tax             decimal.Decimal     `json:"tax"`
	Total           decimal.Decimal     `json:"total"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"paymentMethod,omitempty"`
	PaymentID       string              `json:"paymentId,omitempty"`
	PaidAt          *time.Time          `json:"paidAt,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type OrderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	ProductSKU  string          `json:"productSku,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

// --- Payment ---

type CreatePaymentIntentRequest struct {
	OrderID  uuid.UUID `json:"orderId" binding:"required"`
	Provider string    `json:"provider" binding:"required,oneof=stripe mercadopago"`
}

type PaymentIntentResponse struct {
	Provider     string          `json:"provider"`
	PaymentID    string          `json:"paymentId"`
	ClientSecret string          `json:"clientSecret,omitempty"`
	RedirectURL  string          `json:"redirectUrl,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

type PaymentEventResponse struct {
	Provider  string    `json:"provider"`
	EventID   string    `json:"eventId"`
	PaymentID string    `json:"paymentId,omitempty"`
	Status    string    `json:"status"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
