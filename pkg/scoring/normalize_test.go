package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		lo, hi  float64
		inverse bool
		want    float64
	}{
		{name: "midpoint", value: 10, lo: 0, hi: 20, want: 0.5},
		{name: "lower bound", value: 0, lo: 0, hi: 20, want: 0},
		{name: "upper bound", value: 20, lo: 0, hi: 20, want: 1},
		{name: "below range clamps", value: -5, lo: 0, hi: 20, want: 0},
		{name: "above range clamps", value: 50, lo: 0, hi: 20, want: 1},
		{name: "inverse", value: 5, lo: 0, hi: 20, inverse: true, want: 0.75},
		{name: "inverse above range", value: 50, lo: 0, hi: 20, inverse: true, want: 0},
		{name: "negative range", value: 0, lo: -100, hi: 100, want: 0.5},
		{name: "degenerate range", value: 42, lo: 3, hi: 3, want: 0.5},
		{name: "degenerate range inverse", value: -1, lo: 3, hi: 3, inverse: true, want: 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Normalize(tt.value, tt.lo, tt.hi, tt.inverse), 1e-12)
		})
	}
}

func TestNormalizeMonotonicAndBounded(t *testing.T) {
	prevUp, prevDown := -1.0, 2.0
	for v := -50.0; v <= 250; v += 2.5 {
		up := Normalize(v, 0, 180, false)
		down := Normalize(v, 0, 180, true)

		assert.GreaterOrEqual(t, up, prevUp)
		assert.LessOrEqual(t, down, prevDown)
		for _, n := range []float64{up, down} {
			assert.GreaterOrEqual(t, n, 0.0)
			assert.LessOrEqual(t, n, 1.0)
		}
		prevUp, prevDown = up, down
	}
}

func TestRoundImpact(t *testing.T) {
	assert.Equal(t, -3.2, roundImpact(4.8-8))
	assert.Equal(t, 4.7, roundImpact(4.72222))
	assert.Equal(t, -19.3, roundImpact(0.6666666-20))
}

func TestRoundImpactTiesToEven(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{8.25, 8.2},
		{-8.25, -8.2},
		{0.25, 0.2},
		{0.75, 0.8},
		{-3.75, -3.8},
		{12.5, 12.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundImpact(tt.in), "roundImpact(%v)", tt.in)
	}
}
