package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractThreshold(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     float64
		none     bool
	}{
		{
			name:     "dollar amount with separator",
			question: "Will Bitcoin reach $68,000 by December 2025?",
			want:     68000,
		},
		{
			name:     "dollar with k suffix",
			question: "Will BTC hit $68k?",
			want:     68000,
		},
		{
			name:     "direction word without dollar sign",
			question: "Will Ethereum close above 4000?",
			want:     4000,
		},
		{
			name:     "bare magnitude suffix",
			question: "Will Dogecoin market cap pass 50m?",
			want:     50_000_000,
		},
		{
			name:     "decimal dollar",
			question: "Will XRP trade above $2.5?",
			want:     2.5,
		},
		{
			name:     "year is not a threshold",
			question: "Will the Lakers win the 2026 title?",
			none:     true,
		},
		{
			name:     "date fragment is not a threshold",
			question: "Bitcoin Up or Down - December 26?",
			none:     true,
		},
		{
			name:     "no numbers at all",
			question: "Will it rain tomorrow?",
			none:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractThreshold(tt.question)
			if tt.none {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestExtract(t *testing.T) {
	t.Run("full crypto question", func(t *testing.T) {
		f := Extract("Will Bitcoin reach $68,000 by December 2025?")

		require.NotNil(t, f.Threshold)
		assert.Equal(t, 68000.0, *f.Threshold)
		assert.Equal(t, DirAbove, f.Direction)
		assert.Equal(t, time.December, f.Month)
		assert.Equal(t, 2025, f.Year)
		assert.False(t, f.UpOrDown)
		assert.True(t, f.HasPeriod())
		assert.True(t, f.Keywords["bitcoin"])
		assert.False(t, f.Keywords["will"], "stopwords are excluded from keywords")
	})

	t.Run("below direction", func(t *testing.T) {
		f := Extract("Will ETH dip below $2,000 in March?")
		assert.Equal(t, DirBelow, f.Direction)
		assert.Equal(t, time.March, f.Month)
		require.NotNil(t, f.Threshold)
		assert.Equal(t, 2000.0, *f.Threshold)
	})

	t.Run("up or down phrasing", func(t *testing.T) {
		f := Extract("Bitcoin Up or Down - December 26?")
		assert.True(t, f.UpOrDown)
		assert.Nil(t, f.Threshold)
		assert.Equal(t, time.December, f.Month)
	})

	t.Run("no qualifiers", func(t *testing.T) {
		f := Extract("Will the Chiefs win the Super Bowl?")
		assert.Nil(t, f.Threshold)
		assert.Equal(t, DirNone, f.Direction)
		assert.False(t, f.HasPeriod())
	})

	t.Run("abbreviated month", func(t *testing.T) {
		f := Extract("Fed rate cut in Sep 2026?")
		assert.Equal(t, time.September, f.Month)
		assert.Equal(t, 2026, f.Year)
	})
}

func TestSamePeriod(t *testing.T) {
	dec25 := Features{Month: time.December, Year: 2025}
	dec26 := Features{Month: time.December, Year: 2026}
	jan25 := Features{Month: time.January, Year: 2025}
	decOnly := Features{Month: time.December}
	blank := Features{}

	assert.True(t, dec25.SamePeriod(dec25))
	assert.False(t, dec25.SamePeriod(dec26), "same month, different year")
	assert.False(t, dec25.SamePeriod(jan25), "same year, different month")
	assert.True(t, dec25.SamePeriod(decOnly), "missing year on one side is not a conflict")
	assert.True(t, dec25.SamePeriod(blank))
}

func TestThresholdsEqual(t *testing.T) {
	v := func(x float64) *float64 { return &x }

	assert.True(t, thresholdsEqual(v(68000), v(68000)))
	assert.False(t, thresholdsEqual(v(68000), v(85000)))
	assert.False(t, thresholdsEqual(nil, v(68000)))
	assert.False(t, thresholdsEqual(v(68000), nil))
	assert.False(t, thresholdsEqual(nil, nil))
}
