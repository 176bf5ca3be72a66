package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/leasing-bridge/internal/domain/product"
)

func writeFeed(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.ndjson.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

type memCatalog struct {
	bySKU map[string]product.Product
	order []string
}

func (m *memCatalog) Upsert(_ context.Context, p *product.Product) error {
	if m.bySKU == nil {
		m.bySKU = make(map[string]product.Product)
	}
	m.bySKU[p.SKU] = *p
	m.order = append(m.order, p.SKU)
	return nil
}

func TestParseRecord(t *testing.T) {
	r, err := parseRecord([]byte(`{"sku":" LAPTOP-1 ","name":"Laptop","sales_price":"999.90","discount":10,"extra":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, "LAPTOP-1", r.SKU)
	assert.True(t, r.SalesPrice.Equal(decimal.RequireFromString("999.9")))
	assert.True(t, r.Discount.Equal(decimal.NewFromInt(10)))

	p := r.product()
	assert.Equal(t, "Laptop", p.Name)
	assert.True(t, p.ListPrice.Equal(r.SalesPrice))

	tests := []struct {
		line  string
		field string
	}{
		{line: `{"name":"No SKU"}`, field: "sku"},
		{line: `{"sku":"X"}`, field: "name"},
	}
	for _, tt := range tests {
		_, err := parseRecord([]byte(tt.line))
		var missing *product.MissingFieldError
		require.ErrorAs(t, err, &missing, tt.line)
		assert.Equal(t, tt.field, missing.Field)
	}

	_, err = parseRecord([]byte(`{"sku":"X","name":"Y","sales_price":"abc"}`))
	require.Error(t, err)
	_, err = parseRecord([]byte(`not json`))
	require.Error(t, err)
}

func TestSharedSKUs(t *testing.T) {
	a := writeFeed(t, `{"sku":"A","name":"a"}`, `{"sku":"B","name":"b"}`, ``, `{"name":"no sku"}`)
	b := writeFeed(t, `{"sku":"B","name":"b2"}`, `{"sku":"C","name":"c"}`)
	c := writeFeed(t, `{"sku":"C","name":"c3"}`, `{"sku":"B","name":"b3"}`)

	shared, err := sharedSKUs(context.Background(), []string{a, b, c}, filterConfig{capacity: 1000, fpr: 0.001})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint{"B": 0b111, "C": 0b110}, shared)
}

func TestImportFeeds(t *testing.T) {
	a := writeFeed(t,
		`{"sku":"A","name":"a","sales_price":10}`,
		`{"sku":"B","name":"b from first","sales_price":20}`,
		`{"sku":"BROKEN","name":""}`,
	)
	b := writeFeed(t, `{"sku":"B","name":"b from second","sales_price":25}`)
	feeds := []string{a, b}
	ctx := context.Background()

	shared, err := sharedSKUs(ctx, feeds, filterConfig{capacity: 1000, fpr: 0.001})
	require.NoError(t, err)

	t.Run("last wins", func(t *testing.T) {
		cat := &memCatalog{}
		st, err := importFeeds(ctx, cat, feeds, shared, conflictLast)
		require.NoError(t, err)
		assert.Equal(t, stats{upserted: 2, invalid: 1, conflicts: 1}, st)
		assert.Equal(t, "b from second", cat.bySKU["B"].Name)
		assert.Equal(t, []string{"A", "B"}, cat.order)
	})
	t.Run("skip", func(t *testing.T) {
		cat := &memCatalog{}
		st, err := importFeeds(ctx, cat, feeds, shared, conflictSkip)
		require.NoError(t, err)
		assert.Equal(t, stats{upserted: 1, invalid: 1, conflicts: 2}, st)
		assert.NotContains(t, cat.bySKU, "B")
	})
}

func TestStreamFeed_Missing(t *testing.T) {
	err := streamFeed(context.Background(), filepath.Join(t.TempDir(), "nope.gz"), func(int, []byte) error { return nil })
	require.Error(t, err)
}

func TestLastFeed(t *testing.T) {
	assert.Equal(t, 0, lastFeed(0b1))
	assert.Equal(t, 2, lastFeed(0b101))
	assert.Equal(t, -1, lastFeed(0))
}
