package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// readBody reads the request body. An empty body decodes as an empty object.
func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		b = []byte("{}")
	}
	return jx.DecodeBytes(b), nil
}

// object decodes an object, treating null as empty.
func object(d *jx.Decoder, f func(d *jx.Decoder, key string) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Obj(f)
}

// looseString decodes a string field. Storefront payloads may send numbers
// for string fields and false or null for empty ones.
func looseString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	case jx.Bool:
		v, err := d.Bool()
		if err != nil || !v {
			return "", err
		}
		return "true", nil
	default:
		return "", errors.Errorf("expected string, got %s", d.Next())
	}
}

// looseDecimal decodes a number given as a JSON number or a numeric string.
// Null, false and the empty string decode as absent.
func looseDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		raw = strings.TrimSpace(s)
	case jx.Null:
		return decimal.NullDecimal{}, d.Null()
	case jx.Bool:
		v, err := d.Bool()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		if v {
			return decimal.NewNullDecimal(decimal.NewFromInt(1)), nil
		}
		return decimal.NullDecimal{}, nil
	default:
		return decimal.NullDecimal{}, errors.Errorf("expected number, got %s", d.Next())
	}
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, errors.Errorf("could not convert %q to number", raw)
	}
	return decimal.NewNullDecimal(v), nil
}

// lenientDecimal is looseDecimal that treats unparsable values as absent.
func lenientDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		v, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.NullDecimal{}, nil
		}
		return decimal.NewNullDecimal(v), nil
	}
	switch d.Next() {
	case jx.Number, jx.Null, jx.Bool:
		return looseDecimal(d)
	default:
		return decimal.NullDecimal{}, d.Skip()
	}
}

// looseBool decodes a flag given as a boolean, a number or a string.
func looseBool(d *jx.Decoder) (bool, error) {
	switch d.Next() {
	case jx.Bool:
		return d.Bool()
	case jx.Null:
		return false, d.Null()
	default:
		s, err := looseString(d)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "0", "false", "no":
			return false, nil
		default:
			return true, nil
		}
	}
}

// optionalID decodes a positive integer ID. Null and zero decode as absent.
func optionalID(d *jx.Decoder) (*int64, error) {
	v, err := looseDecimal(d)
	if err != nil || !v.Valid || !v.Decimal.IsPositive() {
		return nil, err
	}
	if !v.Decimal.IsInteger() {
		return nil, errors.Errorf("invalid id %s", v.Decimal)
	}
	id := v.Decimal.IntPart()
	return &id, nil
}
