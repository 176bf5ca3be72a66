package main

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/leasing-bridge/internal/domain/product"
)

const maxLineBytes = 1 << 20

// record is one product line of a feed.
type record struct {
	SKU         string
	Name        string
	Description string
	SalesPrice  decimal.Decimal
	Discount    decimal.Decimal
}

func (r record) product() *product.Product {
	return &product.Product{
		SKU:           r.SKU,
		Name:          r.Name,
		Description:   r.Description,
		ListPrice:     r.SalesPrice,
		BrandDiscount: r.Discount,
	}
}

// parseRecord decodes an NDJSON product line. Prices may be numbers or
// numeric strings.
func parseRecord(line []byte) (record, error) {
	var r record
	err := jx.DecodeBytes(line).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			r.SKU, err = d.Str()
			r.SKU = strings.TrimSpace(r.SKU)
		case "name":
			r.Name, err = d.Str()
		case "description":
			r.Description, err = d.Str()
		case "sales_price":
			r.SalesPrice, err = amount(d)
		case "discount":
			r.Discount, err = amount(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return record{}, err
	}
	if r.SKU == "" {
		return record{}, &product.MissingFieldError{Field: "sku"}
	}
	if r.Name == "" {
		return record{}, &product.MissingFieldError{Field: "name"}
	}
	return r, nil
}

func amount(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil || strings.TrimSpace(s) == "" {
			return decimal.Zero, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

// streamFeed opens a gzip-compressed NDJSON feed and calls fn for every
// non-blank line with its 1-based line number.
func streamFeed(ctx context.Context, path string, fn func(n int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	n := 0
	for scanner.Scan() {
		n++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// skuOf extracts only the sku of a line, skipping the other fields.
func skuOf(line []byte) string {
	var sku string
	_ = jx.DecodeBytes(line).Obj(func(d *jx.Decoder, key string) error {
		if key != "sku" || d.Next() != jx.String {
			return d.Skip()
		}
		s, err := d.Str()
		sku = strings.TrimSpace(s)
		return err
	})
	return sku
}
