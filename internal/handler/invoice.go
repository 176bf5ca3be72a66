package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/leasing-bridge/internal/domain/invoice"
)

// InvoiceOrder handles POST /api/orders/{id}/invoice: it creates the invoice
// of the order and posts it.
func (h *Handler) InvoiceOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := invoice.CreateRequest{OrderID: id}
	err = object(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "agency_id":
			req.AgencyID, err = optionalID(d)
		case "title":
			req.Title, err = looseString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, errors.Wrap(err, "decode invoice"))
		return
	}

	draft, err := h.invoices.CreateFromOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.invoices.Post(r.Context(), draft.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, "Invoice posted successfully", func(e *jx.Encoder) {
		e.Field("invoice", func(e *jx.Encoder) { encodeInvoice(e, inv) })
	})
}

func encodeInvoice(e *jx.Encoder, inv *invoice.Invoice) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(inv.ID) })
		e.Field("order_id", func(e *jx.Encoder) { e.Int64(inv.OrderID) })
		e.Field("partner_id", func(e *jx.Encoder) { e.Int64(inv.PartnerID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(inv.Title) })
		e.Field("state", func(e *jx.Encoder) { e.Str(string(inv.State)) })
		e.Field("display_number", func(e *jx.Encoder) { e.Str(inv.DisplayNumber) })
		e.Field("invoice_date", func(e *jx.Encoder) { e.Str(inv.InvoiceDate.Format("2006-01-02")) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range inv.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Int64(l.ProductID) })
						e.Field("description", func(e *jx.Encoder) { e.Str(l.Description) })
						e.Field("quantity", func(e *jx.Encoder) { number(e, l.Quantity) })
						e.Field("price_unit", func(e *jx.Encoder) { money(e, l.UnitPrice) })
						e.Field("product_list_price", func(e *jx.Encoder) { money(e, l.ProductListPrice) })
						e.Field("include_warranty", func(e *jx.Encoder) { e.Bool(l.IncludeWarranty) })
						e.Field("discount", func(e *jx.Encoder) { number(e, l.Discount) })
						e.Field("price_subtotal", func(e *jx.Encoder) { money(e, l.Subtotal) })
					})
				}
			})
		})
		e.Field("amount_untaxed", func(e *jx.Encoder) { money(e, inv.AmountUntaxed) })
		e.Field("amount_vat", func(e *jx.Encoder) { money(e, inv.AmountVAT) })
		e.Field("total_incl_vat", func(e *jx.Encoder) { money(e, inv.TotalInclVAT) })
	})
}
