package token

import (
	"testing"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    uint64
		wantErr string
	}{
		{input: "1", want: 1_000_000},
		{input: "1.5", want: 1_500_000},
		{input: " 0.000001 ", want: 1},
		{input: "1e3", want: 1_000_000_000},
		{input: "18446744073709.551615", want: 18446744073709551615},
		{input: "", wantErr: "required"},
		{input: "0", wantErr: "greater than zero"},
		{input: "-2", wantErr: "greater than zero"},
		{input: "two", wantErr: "not a number"},
		{input: "0.0000001", wantErr: "decimal places"},
		{input: "18446744073709.551616", wantErr: "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperr.IsKind(err, apperr.KindValidation))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(1_500_000))
	assert.Equal(t, "0", FormatUnits(0))
	assert.Equal(t, "0.000001", FormatUnits(1))
	assert.Equal(t, "2", FormatSOL(2_000_000_000))
	assert.Equal(t, "0.01146", FormatSOL(11_460_000))
}

func TestParseDecimals(t *testing.T) {
	for _, ok := range []string{"0", "6", " 9 "} {
		_, err := ParseDecimals(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "10", "-1", "1.0", "x"} {
		_, err := ParseDecimals(bad)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), bad)
	}
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "So1111...111112", ShortAddress("So11111111111111111111111111111111111111112"))
	assert.Equal(t, "short", ShortAddress("short"))
}
