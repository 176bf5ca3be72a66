package tax

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type mockRepo struct {
	categories []Category
	err        error
}

func (m *mockRepo) ListCategories(_ context.Context) ([]Category, error) {
	return m.categories, m.err
}

func TestTable_ComputeAll(t *testing.T) {
	table, err := NewTable(EUR, []Category{
		{Code: "VAT20", Name: "TVA 20%", Mode: ModeExclusive, Rate: d("0.2")},
		{Code: "VAT20INC", Name: "TVA 20% incl.", Mode: ModeInclusive, Rate: d("0.2")},
	})
	require.NoError(t, err)

	tests := []struct {
		name         string
		in           Input
		wantExcluded decimal.Decimal
		wantIncluded decimal.Decimal
		wantErr      error
	}{
		{
			name:         "untaxed line",
			in:           Input{PriceUnit: d("45.83"), Quantity: d("2")},
			wantExcluded: d("91.66"),
			wantIncluded: d("91.66"),
		},
		{
			name:         "exclusive with discount",
			in:           Input{PriceUnit: d("100"), Quantity: d("1"), Discount: d("10"), Category: "VAT20"},
			wantExcluded: d("90"),
			wantIncluded: d("108"),
		},
		{
			name:         "inclusive extracts tax",
			in:           Input{PriceUnit: d("120"), Quantity: d("1"), Category: "VAT20INC"},
			wantExcluded: d("100"),
			wantIncluded: d("120"),
		},
		{
			name:         "exclusive rounds to cents",
			in:           Input{PriceUnit: d("45.83"), Quantity: d("3"), Category: "VAT20"},
			wantExcluded: d("137.49"),
			wantIncluded: d("164.99"),
		},
		{
			name:    "unknown category",
			in:      Input{PriceUnit: d("10"), Quantity: d("1"), Category: "GST"},
			wantErr: ErrUnknownCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.ComputeAll(context.Background(), tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantExcluded.Equal(got.TotalExcluded),
				"excluded: expected %s, got %s", tt.wantExcluded, got.TotalExcluded)
			assert.True(t, tt.wantIncluded.Equal(got.TotalIncluded),
				"included: expected %s, got %s", tt.wantIncluded, got.TotalIncluded)
		})
	}
}

func TestNewTable_InvalidCategory(t *testing.T) {
	_, err := NewTable(EUR, []Category{{Code: "BAD", Mode: "compound", Rate: d("0.1")}})
	require.ErrorIs(t, err, ErrInvalidMode)

	_, err = NewTable(EUR, []Category{{Code: "NEG", Mode: ModeExclusive, Rate: d("-0.1")}})
	require.ErrorIs(t, err, ErrInvalidRate)
}

func TestLoadTable(t *testing.T) {
	table, err := LoadTable(context.Background(), &mockRepo{
		categories: []Category{{Code: "VAT20", Mode: ModeExclusive, Rate: d("0.2")}},
	}, EUR)
	require.NoError(t, err)
	assert.True(t, table.Has("VAT20"))
	assert.False(t, table.Has("VAT10"))

	got, err := table.ComputeAll(context.Background(), Input{PriceUnit: d("10"), Quantity: d("1"), Category: "VAT20"})
	require.NoError(t, err)
	assert.True(t, d("2").Equal(got.Amount()))

	_, err = LoadTable(context.Background(), &mockRepo{err: errors.New("db down")}, EUR)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list tax categories")
}

func TestCurrency_Round(t *testing.T) {
	assert.True(t, d("0.13").Equal(EUR.Round(d("0.125"))))
	assert.True(t, d("10").Equal(EUR.Round(d("9.999"))))

	chf, err := NewCurrency("CHF", d("0.05"))
	require.NoError(t, err)
	assert.True(t, d("1.05").Equal(chf.Round(d("1.03"))))
	assert.True(t, d("1.00").Equal(chf.Round(d("1.02"))))

	_, err = NewCurrency("XXX", decimal.Zero)
	require.Error(t, err)
}
