package transport

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is one catalog entry as the catalog service returns it.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	SKU         string          `json:"sku"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
}

// ProductPage is the paginated catalog listing response.
type ProductPage struct {
	Products      []Product `json:"products"`
	CurrentPage   int       `json:"currentPage"`
	TotalPages    int       `json:"totalPages"`
	TotalProducts int       `json:"totalProducts"`
}

// ProductQuery carries the listing parameters the catalog service accepts.
type ProductQuery struct {
	Page     int
	Limit    int
	Search   string
	Brand    string
	Category string
}

// CartItem is one enriched cart line as the cart service returns it. The
// server owns every number here; LineTotal is never recomputed client-side.
type CartItem struct {
	ProductID string          `json:"productId"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Order is one completed order from the order history.
type Order struct {
	ID        string     `json:"id"`
	UserEmail string     `json:"userEmail"`
	Items     []CartItem `json:"items"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

// AuthResponse is the body returned by login and register.
type AuthResponse struct {
	Token string `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type addItemRequest struct {
	ProductSKU string `json:"productSku"`
	Quantity   int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type remoteError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r remoteError) text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}
