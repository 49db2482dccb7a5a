package sources

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpliedFromDecimal(t *testing.T) {
	tests := []struct {
		name    string
		odds    float64
		want    string
		wantErr bool
	}{
		{"even money", 2.0, "0.5", false},
		{"strong favorite", 1.25, "0.8", false},
		{"longshot", 10.0, "0.1", false},
		{"rounds to six places", 3.0, "0.333333", false},
		{"exactly one is invalid", 1.0, "", true},
		{"below one is invalid", 0.8, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ImpliedFromDecimal(decimal.NewFromFloat(tt.odds))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestImpliedFromAmerican(t *testing.T) {
	tests := []struct {
		name    string
		odds    int64
		want    string
		wantErr bool
	}{
		{"plus 100 is even money", 100, "0.5", false},
		{"minus 100 is even money", -100, "0.5", false},
		{"underdog plus 300", 300, "0.25", false},
		{"favorite minus 300", -300, "0.75", false},
		{"zero is invalid", 0, "", true},
		{"inside the dead zone", 50, "", true},
		{"negative dead zone", -99, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ImpliedFromAmerican(tt.odds)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestRemoveVig(t *testing.T) {
	// A typical two-way book at 1.90/1.90: each side implies ~0.5263,
	// summing to ~1.0526. De-vigged both sides are exactly 0.5.
	a, err := ImpliedFromDecimal(decimal.RequireFromString("1.90"))
	require.NoError(t, err)
	fair := RemoveVig([]decimal.Decimal{a, a})

	require.Len(t, fair, 2)
	assert.True(t, fair[0].Equal(decimal.RequireFromString("0.5")), "got %s", fair[0])
	assert.True(t, fair[1].Equal(decimal.RequireFromString("0.5")), "got %s", fair[1])

	// De-vigging preserves relative ordering.
	strong, _ := ImpliedFromDecimal(decimal.RequireFromString("1.50"))
	weak, _ := ImpliedFromDecimal(decimal.RequireFromString("3.20"))
	fair = RemoveVig([]decimal.Decimal{strong, weak})
	assert.True(t, fair[0].GreaterThan(fair[1]))

	sum := fair[0].Add(fair[1])
	assert.True(t, sum.Sub(decimal.NewFromInt(1)).Abs().LessThan(decimal.RequireFromString("0.00001")),
		"de-vigged set sums to 1, got %s", sum)

	// Degenerate zero set passes through.
	zeros := []decimal.Decimal{decimal.Zero, decimal.Zero}
	assert.Equal(t, zeros, RemoveVig(zeros))
}

func TestOverround(t *testing.T) {
	a, _ := ImpliedFromDecimal(decimal.RequireFromString("1.90"))
	ov := Overround([]decimal.Decimal{a, a})
	assert.True(t, ov.GreaterThan(decimal.Zero), "a vigged book has a positive margin, got %s", ov)

	half := decimal.RequireFromString("0.5")
	assert.True(t, Overround([]decimal.Decimal{half, half}).IsZero())
}
