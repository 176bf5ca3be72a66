package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/leasing-bridge/internal/domain/product"
)

type productPayload struct {
	SKU         string
	Name        string
	Description string
	SalesPrice  decimal.NullDecimal
	Discount    decimal.NullDecimal
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (productPayload, error) {
	var p productPayload
	d, err := readBody(w, r)
	if err != nil {
		return p, err
	}
	err = object(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			p.SKU, err = looseString(d)
		case "name":
			p.Name, err = looseString(d)
		case "description":
			p.Description, err = looseString(d)
		case "sales_price":
			p.SalesPrice, err = looseDecimal(d)
		case "discount":
			p.Discount, err = looseDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return p, errors.Wrap(err, "decode product")
	}
	return p, nil
}

func productID(p *product.Product) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(p.ID) })
	}
}

// CreateProduct handles POST /api/product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProduct(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Create(r.Context(), product.CreateRequest(in))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Product created successfully", productID(p))
}

// UpdateProduct handles PUT /api/product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProduct(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Update(r.Context(), product.UpdateRequest(in))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Product updated successfully", productID(p))
}

// DeleteProduct handles DELETE /api/product.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProduct(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Delete(r.Context(), in.SKU)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Product deleted successfully", productID(p))
}
