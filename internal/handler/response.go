package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/leasing-bridge/internal/domain/invoice"
	"github.com/xenking/leasing-bridge/internal/domain/order"
	"github.com/xenking/leasing-bridge/internal/domain/partner"
	"github.com/xenking/leasing-bridge/internal/domain/product"
)

// writeResult writes a tagged result. Results always use HTTP 200, the
// storefront reads the status field.
func writeResult(w http.ResponseWriter, status, message string, fields func(e *jx.Encoder)) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		if fields != nil {
			fields(e)
		}
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Bytes())
}

func writeSuccess(w http.ResponseWriter, message string, fields func(e *jx.Encoder)) {
	writeResult(w, "success", message, fields)
}

// writeError maps err to a tagged error result. Domain errors carry their
// own client message; anything else is logged and reported as "Error: ...".
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeResult(w, "error", errorMessage(r, err), nil)
}

func errorMessage(r *http.Request, err error) string {
	var (
		validation *order.ValidationError
		notFound   *order.ProductNotFoundError
		missing    *product.MissingFieldError
		sku        *product.SKUError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.As(err, &missing):
		return missing.Error()
	case errors.As(err, &sku):
		return sku.Error()
	case errors.Is(err, order.ErrNotFound):
		return "Order not found"
	case errors.Is(err, invoice.ErrNotFound):
		return "Invoice not found"
	case errors.Is(err, invoice.ErrEmptyOrder):
		return "Order has no lines to invoice"
	case errors.Is(err, partner.ErrNotFound):
		return "Financing agency not found"
	}

	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	return fmt.Sprintf("Error: %s", err)
}

// RecoverResponder answers a recovered panic with a tagged error result.
func RecoverResponder(w http.ResponseWriter, _ *http.Request, rec any) {
	writeResult(w, "error", fmt.Sprintf("Error: %v", rec), nil)
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}

func number(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}
