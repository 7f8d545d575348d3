package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplay(t *testing.T) {
	assert.Equal(t, "1.5", Display(1_500_000_000))
	assert.Equal(t, "0.000000001", Display(1))
	assert.Equal(t, "0", Display(0))
	assert.Equal(t, "9223372036.854775807", Display(9_223_372_036_854_775_807))
}

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  error
	}{
		{in: "1.5", want: 1_500_000_000},
		{in: "0.000000001", want: 1},
		{in: "2", want: 2_000_000_000},
		{in: "0.0000000001", err: ErrTooPrecise},
		{in: "abc", err: ErrInvalidDecimal},
		{in: "9223372036.854775808", err: ErrOutOfRange},
		{in: "9223372036.854775807", want: 9_223_372_036_854_775_807},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseUnits(tc.in)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
