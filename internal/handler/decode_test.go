package handler

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooseDecimal(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		valid   bool
		wantErr bool
	}{
		{in: `12.5`, want: "12.5", valid: true},
		{in: `"12.5"`, want: "12.5", valid: true},
		{in: `" 7 "`, want: "7", valid: true},
		{in: `1e2`, want: "100", valid: true},
		{in: `0`, want: "0", valid: true},
		{in: `""`},
		{in: `null`},
		{in: `false`},
		{in: `"abc"`, wantErr: true},
		{in: `[1]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := looseDecimal(jx.DecodeStr(tt.in))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.valid, v.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, v.Decimal.String())
			}
		})
	}
}

func TestLenientDecimal(t *testing.T) {
	for in, valid := range map[string]bool{`"abc"`: false, `{"a":1}`: false, `"3.5"`: true, `4`: true} {
		v, err := lenientDecimal(jx.DecodeStr(in))
		require.NoError(t, err, in)
		assert.Equal(t, valid, v.Valid, in)
	}
}

func TestLooseString(t *testing.T) {
	for in, want := range map[string]string{
		`"Paris"`: "Paris",
		`75001`:   "75001",
		`null`:    "",
		`false`:   "",
	} {
		got, err := looseString(jx.DecodeStr(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := looseString(jx.DecodeStr(`{}`))
	require.Error(t, err)
}

func TestLooseBool(t *testing.T) {
	for in, want := range map[string]bool{
		`true`: true, `false`: false, `1`: true, `0`: false, `"yes"`: true, `"false"`: false, `null`: false,
	} {
		got, err := looseBool(jx.DecodeStr(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestOptionalID(t *testing.T) {
	id, err := optionalID(jx.DecodeStr(`"7"`))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(7), *id)

	for _, in := range []string{`null`, `0`, `-3`} {
		id, err := optionalID(jx.DecodeStr(in))
		require.NoError(t, err, in)
		assert.Nil(t, id, in)
	}
	_, err = optionalID(jx.DecodeStr(`1.5`))
	require.Error(t, err)
}
