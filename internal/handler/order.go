package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/leasing-bridge/internal/domain/order"
	"github.com/xenking/leasing-bridge/internal/domain/partner"
	"github.com/xenking/leasing-bridge/internal/domain/quote"
)

// ReceiveOrder handles POST /api/woocommerce/order.
func (h *Handler) ReceiveOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodeIntake(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.orders.Intake(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, "Order created successfully", func(e *jx.Encoder) {
		e.Field("order_id", func(e *jx.Encoder) { e.Int64(res.Order.ID) })
		e.Field("order_name", func(e *jx.Encoder) { e.Str(res.Order.Name) })
		e.Field("installments", func(e *jx.Encoder) { e.Str(strconv.Itoa(res.Installments)) })
	})
}

func decodeIntake(w http.ResponseWriter, r *http.Request) (order.IntakeRequest, error) {
	var req order.IntakeRequest
	d, err := readBody(w, r)
	if err != nil {
		return req, err
	}
	err = object(d, func(d *jx.Decoder, key string) error {
		if key != "order" {
			return d.Skip()
		}
		return object(d, func(d *jx.Decoder, key string) error {
			switch key {
			case "customer":
				c, err := decodeCustomer(d)
				req.Customer = c
				return err
			case "products":
				if d.Next() == jx.Null {
					return d.Null()
				}
				return d.Arr(func(d *jx.Decoder) error {
					item, err := decodeItem(d)
					req.Items = append(req.Items, item)
					return err
				})
			case "shipping":
				return object(d, func(d *jx.Decoder, key string) error {
					if key != "address" {
						return d.Skip()
					}
					addr, err := decodeAddress(d)
					req.Shipping = addr
					return err
				})
			case "metadata":
				return object(d, func(d *jx.Decoder, key string) error {
					if key != "order_note" {
						return d.Skip()
					}
					note, err := looseString(d)
					req.Note = note
					return err
				})
			case "quote":
				s, err := looseString(d)
				req.Installments = s
				return err
			default:
				return d.Skip()
			}
		})
	})
	if err != nil {
		return req, errors.Wrap(err, "decode order")
	}
	return req, nil
}

// decodeCustomer returns nil for a missing or empty customer object.
func decodeCustomer(d *jx.Decoder) (*partner.Customer, error) {
	var (
		c    partner.Customer
		seen bool
	)
	err := object(d, func(d *jx.Decoder, key string) error {
		seen = true
		var err error
		switch key {
		case "name":
			c.Name, err = looseString(d)
		case "email":
			c.Email, err = looseString(d)
		case "siren":
			c.Siren, err = looseString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil || !seen {
		return nil, err
	}
	return &c, nil
}

func decodeItem(d *jx.Decoder) (order.IntakeItem, error) {
	var item order.IntakeItem
	err := object(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			item.SKU, err = looseString(d)
		case "quantity":
			item.Quantity, err = looseDecimal(d)
		case "price_discount":
			item.Discount, err = looseDecimal(d)
		case "price_quote":
			item.ManualQuote, err = lenientDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return item, err
}

func decodeAddress(d *jx.Decoder) (partner.Address, error) {
	var addr partner.Address
	err := object(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "street":
			addr.Street, err = looseString(d)
		case "city":
			addr.City, err = looseString(d)
		case "zip_code":
			addr.Zip, err = looseString(d)
		case "country":
			addr.Country, err = looseString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return addr, err
}

// GetOrder handles GET /api/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Order retrieved", func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, o) })
	})
}

// UpdateOrderTerms handles PATCH /api/orders/{id}.
func (h *Handler) UpdateOrderTerms(w http.ResponseWriter, r *http.Request) {
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

	var upd order.TermsUpdate
	err = object(d, func(d *jx.Decoder, key string) error {
		switch key {
		case "installments":
			s, err := looseString(d)
			if err != nil {
				return err
			}
			months := quote.ParseMonths(s)
			upd.InstallmentMonths = &months
			return nil
		case "warranty_percentage":
			v, err := looseDecimal(d)
			if err != nil {
				return err
			}
			pct := v.Decimal
			upd.WarrantyPercentage = &pct
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, r, errors.Wrap(err, "decode terms"))
		return
	}

	o, err := h.orders.UpdateTerms(r.Context(), id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Order updated successfully", func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, o) })
	})
}

// UpdateOrderLine handles PATCH /api/orders/{id}/lines/{line}. A null or
// zero price_quote clears the manual quote.
func (h *Handler) UpdateOrderLine(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	lineID, err := pathID(r, "line")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var upd order.LineUpdate
	dec := func(dst **decimal.Decimal) func(d *jx.Decoder) error {
		return func(d *jx.Decoder) error {
			v, err := looseDecimal(d)
			if err != nil {
				return err
			}
			*dst = &v.Decimal
			return nil
		}
	}
	err = object(d, func(d *jx.Decoder, key string) error {
		switch key {
		case "quantity":
			return dec(&upd.Quantity)(d)
		case "discount":
			return dec(&upd.DiscountPercentage)(d)
		case "price_quote":
			return dec(&upd.ManualMonthlyQuote)(d)
		case "include_warranty":
			v, err := looseBool(d)
			upd.IncludeWarranty = &v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, r, errors.Wrap(err, "decode line"))
		return
	}

	l, err := h.orders.UpdateLine(r.Context(), orderID, lineID, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Order line updated successfully", func(e *jx.Encoder) {
		e.Field("line", func(e *jx.Encoder) { encodeLine(e, l) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	var untaxed, taxes, total decimal.Decimal
	for _, l := range o.Lines {
		a := l.Pricing.Amounts()
		untaxed = untaxed.Add(a.Subtotal)
		taxes = taxes.Add(a.Tax)
		total = total.Add(a.Total)
	}

	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(o.Name) })
		e.Field("partner_id", func(e *jx.Encoder) { e.Int64(o.PartnerID) })
		e.Field("shipping_partner_id", func(e *jx.Encoder) {
			if o.ShippingPartnerID == nil {
				e.Null()
				return
			}
			e.Int64(*o.ShippingPartnerID)
		})
		e.Field("note", func(e *jx.Encoder) { e.Str(o.Note) })
		e.Field("installments", func(e *jx.Encoder) { e.Str(strconv.Itoa(o.Terms.InstallmentMonths)) })
		e.Field("warranty_percentage", func(e *jx.Encoder) { number(e, o.Terms.WarrantyPercentage) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range o.Lines {
					encodeLine(e, &o.Lines[i])
				}
			})
		})
		e.Field("amount_untaxed", func(e *jx.Encoder) { money(e, untaxed) })
		e.Field("amount_tax", func(e *jx.Encoder) { money(e, taxes) })
		e.Field("amount_total", func(e *jx.Encoder) { money(e, total) })
	})
}

func encodeLine(e *jx.Encoder, l *order.Line) {
	p := &l.Pricing
	a := p.Amounts()
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(l.ID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(l.ProductID) })
		e.Field("description", func(e *jx.Encoder) { e.Str(l.Description) })
		e.Field("quantity", func(e *jx.Encoder) { number(e, p.Quantity) })
		e.Field("price_unit", func(e *jx.Encoder) { money(e, p.UnitPrice) })
		e.Field("discount", func(e *jx.Encoder) { number(e, p.DiscountPercentage) })
		e.Field("include_warranty", func(e *jx.Encoder) { e.Bool(p.IncludeWarranty) })
		e.Field("manual_price_quote", func(e *jx.Encoder) {
			if !p.HasManualQuote() {
				e.Null()
				return
			}
			money(e, p.ManualMonthlyQuote.Decimal)
		})
		e.Field("price_quote", func(e *jx.Encoder) { money(e, p.BaseMonthlyQuote()) })
		e.Field("display_price_quote", func(e *jx.Encoder) { money(e, p.DisplayMonthlyQuote()) })
		e.Field("effective_price_quote", func(e *jx.Encoder) { money(e, p.EffectiveMonthlyQuote()) })
		e.Field("price_subtotal", func(e *jx.Encoder) { money(e, a.Subtotal) })
		e.Field("price_tax", func(e *jx.Encoder) { money(e, a.Tax) })
		e.Field("price_total", func(e *jx.Encoder) { money(e, a.Total) })
	})
}
