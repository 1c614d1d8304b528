package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitPricer(t *testing.T) {
	p, err := NewUnitPricer("0.01")
	require.NoError(t, err)

	cases := []struct {
		units int
		want  string
	}{
		{1, "0.01"},
		{3, "0.03"},
		{100, "1"},
	}
	for _, tc := range cases {
		amt, err := p.Price(tc.units)
		require.NoError(t, err)
		assert.Equal(t, tc.want, amt.String(), "units=%d", tc.units)
	}
}

func TestUnitPricerRejectsNonPositiveUnits(t *testing.T) {
	p, err := NewUnitPricer("0.01")
	require.NoError(t, err)

	for _, units := range []int{0, -1} {
		_, err := p.Price(units)
		assert.Error(t, err, "units=%d", units)
	}
}

func TestNewUnitPricerValidation(t *testing.T) {
	for _, raw := range []string{"", "abc", "0", "-0.01"} {
		_, err := NewUnitPricer(raw)
		assert.Error(t, err, "unit price %q", raw)
	}
}
