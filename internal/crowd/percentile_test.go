package crowd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 95, 0},
		{"single", []float64{42}, 95, 42},
		{"median even", []float64{4, 1, 3, 2}, 50, 2.5},
		{"p95 of 1..10", []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, 95, 9.55},
		{"p95 of 1..21", seq(1, 21), 95, 20},
		{"p0 is min", []float64{7, 3, 9}, 0, 3},
		{"p100 is max", []float64{7, 3, 9}, 100, 9},
		{"p out of range clamps", []float64{7, 3, 9}, 150, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Percentile(tt.values, tt.p), 1e-9)
		})
	}
}

func TestPercentile_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	in := []float64{3, 1, 2}
	Percentile(in, 50)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestLabelFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level int
		want  string
	}{
		{0, LabelVeryLow},
		{29, LabelVeryLow},
		{30, LabelLow},
		{59, LabelLow},
		{60, LabelModerate},
		{119, LabelModerate},
		{120, LabelHigh},
		{159, LabelHigh},
		{160, LabelVeryHigh},
		{199, LabelVeryHigh},
		{200, LabelExtreme},
		{450, LabelExtreme},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LabelFor(tt.level), "level %d", tt.level)
	}
}

func TestSelectTopRides(t *testing.T) {
	t.Parallel()

	open := make([]openRide, 0, 10)
	for i := range 10 {
		open = append(open, openRide{id: uint(i + 1), wait: 5 * (i + 1)})
	}
	top := selectTopRides(open)
	assert.Equal(t, []openRide{{10, 50}, {9, 45}, {8, 40}}, top)
	assert.InDelta(t, 45.0, currentAverage(top), 1e-9)

	// ceil(0.3*20) = 6
	open = open[:0]
	for i := range 20 {
		open = append(open, openRide{id: uint(i + 1), wait: 10})
	}
	top = selectTopRides(open)
	assert.Len(t, top, 6)
	assert.Equal(t, uint(1), top[0].id, "ties ordered by ride id")

	// fewer rides than the floor uses them all
	top = selectTopRides([]openRide{{1, 5}, {2, 0}})
	assert.Len(t, top, 2)
}

func TestCurrentAverage_ExcludesZeroWaits(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 30.0, currentAverage([]openRide{{1, 40}, {2, 20}, {3, 0}}), 1e-9)
	assert.Zero(t, currentAverage([]openRide{{1, 0}, {2, 0}}))
}

func TestConfidence(t *testing.T) {
	t.Parallel()

	first := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, minConfidence, confidence(time.Time{}, time.Time{}, 0, 3, 730))

	// full coverage, full density
	last := first.Add(730 * 24 * time.Hour)
	assert.Equal(t, maxConfidence, confidence(first, last, 730*24*3, 3, 730))

	// full coverage, no density beyond floor
	assert.Equal(t, 70, confidence(first, last, 1, 3, 730))

	// half coverage, half density: 0.7*50 + 0.3*50
	half := first.Add(365 * 24 * time.Hour)
	assert.Equal(t, 50, confidence(first, half, 365*24*3, 3, 730))

	// monotonic in coverage with density fixed
	prev := 0
	for days := 0; days <= 730; days += 73 {
		c := confidence(first, first.Add(time.Duration(days)*24*time.Hour), 5000, 3, 730)
		assert.GreaterOrEqual(t, c, prev)
		prev = c
	}

	// monotonic in density with coverage fixed
	prev = 0
	for count := int64(1); count <= 730*24*3; count *= 4 {
		c := confidence(first, half, count, 3, 730)
		assert.GreaterOrEqual(t, c, prev)
		prev = c
	}
}

func seq(from, to int) []float64 {
	out := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, float64(i))
	}
	return out
}
