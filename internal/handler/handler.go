// Package handler implements the storefront-facing JSON API on net/http.
//
// Operations answer with tagged results, {"status":"success",...} or
// {"status":"error","message":...}, always with HTTP 200. Only
// authentication failures use a protocol status (401).
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/leasing-bridge/internal/domain/invoice"
	"github.com/xenking/leasing-bridge/internal/domain/order"
	"github.com/xenking/leasing-bridge/internal/domain/product"
)

// Orders is the order service used by the handler.
type Orders interface {
	Intake(ctx context.Context, req order.IntakeRequest) (*order.IntakeResult, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
	UpdateTerms(ctx context.Context, id int64, upd order.TermsUpdate) (*order.Order, error)
	UpdateLine(ctx context.Context, orderID, lineID int64, upd order.LineUpdate) (*order.Line, error)
}

// Products is the product sync service used by the handler.
type Products interface {
	Create(ctx context.Context, req product.CreateRequest) (*product.Product, error)
	Update(ctx context.Context, req product.UpdateRequest) (*product.Product, error)
	Delete(ctx context.Context, sku string) (*product.Product, error)
}

// Invoices is the invoice service used by the handler.
type Invoices interface {
	CreateFromOrder(ctx context.Context, req invoice.CreateRequest) (*invoice.Invoice, error)
	Post(ctx context.Context, id int64) (*invoice.Invoice, error)
}

// Handler serves the API endpoints.
type Handler struct {
	orders   Orders
	products Products
	invoices Invoices
}

// New creates a Handler.
func New(orders Orders, products Products, invoices Invoices) *Handler {
	return &Handler{orders: orders, products: products, invoices: invoices}
}

// Register adds the API routes to mux behind API key authentication.
func (h *Handler) Register(mux *http.ServeMux, a Authenticator) {
	routes := map[string]http.HandlerFunc{
		"POST /api/woocommerce/order":         h.ReceiveOrder,
		"POST /api/product":                   h.CreateProduct,
		"PUT /api/product":                    h.UpdateProduct,
		"DELETE /api/product":                 h.DeleteProduct,
		"GET /api/orders/{id}":                h.GetOrder,
		"PATCH /api/orders/{id}":              h.UpdateOrderTerms,
		"PATCH /api/orders/{id}/lines/{line}": h.UpdateOrderLine,
		"POST /api/orders/{id}/invoice":       h.InvoiceOrder,
	}
	for pattern, fn := range routes {
		mux.Handle(pattern, RequireAPIKey(a, fn))
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid %s %q", name, r.PathValue(name))
	}
	return id, nil
}
