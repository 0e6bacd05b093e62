package property

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscreteSet(t *testing.T) {
	set := NewDiscreteSet("OFF", "ON", "OFF")

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"member", "OFF", false},
		{"other member", "ON", false},
		{"case sensitive", "on", true},
		{"unknown", "AUTO", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := set.Validate(tt.value)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidValue)
				var ive *InvalidValueError
				require.ErrorAs(t, err, &ive)
				assert.Equal(t, ReasonNotMember, ive.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}

	assert.Equal(t, []string{"OFF", "ON"}, set.Members())
	assert.Equal(t, KindDiscreteSet, set.Kind())
}

func TestDiscreteSetNumbers(t *testing.T) {
	set := NewDiscreteSet(155, 313, 625)

	_, err := set.Validate(156)
	assert.ErrorIs(t, err, ErrInvalidValue)

	got, err := set.Validate(313)
	require.NoError(t, err)
	assert.Equal(t, 313, got)
}

func TestTruncatedDiscreteSet(t *testing.T) {
	set := NewTruncatedDiscreteSet(1251, 155, 625, 313, 313)

	tests := []struct {
		name  string
		value int
		want  int
	}{
		{"below minimum clamps", 10, 155},
		{"above maximum clamps", 5000, 1251},
		{"exact member", 625, 625},
		{"nearest below", 200, 155},
		{"nearest above", 300, 313},
		{"tie goes low", 469, 313},
		{"minimum", 155, 155},
		{"maximum", 1251, 1251},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := set.Validate(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []int{155, 313, 625, 1251}, set.Members())
}

func TestTruncatedDiscreteSetIsIdempotent(t *testing.T) {
	set := NewTruncatedDiscreteSet(0.1, 0.5, 1.0, 2.5)
	for _, v := range []float64{-3, 0.2, 0.3, 0.75, 1.7, 9} {
		once, err := set.Validate(v)
		require.NoError(t, err)
		twice, err := set.Validate(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "value %v", v)
		assert.Contains(t, set.Members(), once)
	}
}

func TestTruncatedDiscreteSetEdgeCases(t *testing.T) {
	_, err := NewTruncatedDiscreteSet[int]().Validate(4)
	var ive *InvalidValueError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, ReasonEmptySet, ive.Reason)

	_, err = NewTruncatedDiscreteSet(1.0, 2.0).Validate(math.NaN())
	assert.ErrorIs(t, err, ErrInvalidValue)

	got, err := NewTruncatedDiscreteSet(uint(10), uint(20)).Validate(14)
	require.NoError(t, err)
	assert.Equal(t, uint(10), got)
}

func TestTruncatedDiscreteSetExtremes(t *testing.T) {
	t.Run("int8", func(t *testing.T) {
		set := NewTruncatedDiscreteSet[int8](-128, 127)
		tests := []struct{ value, want int8 }{
			{0, 127},
			{-1, -128},
			{-2, -128},
			{63, 127},
		}
		for _, tt := range tests {
			got, err := set.Validate(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "value %d", tt.value)
		}
	})

	t.Run("int64", func(t *testing.T) {
		set := NewTruncatedDiscreteSet[int64](math.MinInt64, math.MaxInt64)
		tests := []struct{ value, want int64 }{
			{0, math.MaxInt64},
			{-1, math.MinInt64},
			{math.MaxInt64 - 1, math.MaxInt64},
			{math.MinInt64 + 1, math.MinInt64},
		}
		for _, tt := range tests {
			got, err := set.Validate(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "value %d", tt.value)
		}
	})

	t.Run("uint64", func(t *testing.T) {
		set := NewTruncatedDiscreteSet[uint64](0, math.MaxUint64)
		got, err := set.Validate(math.MaxUint64 / 2)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), got)

		got, err = set.Validate(math.MaxUint64/2 + 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(math.MaxUint64), got)
	})
}

func TestRange(t *testing.T) {
	r := NewRange(-200.0, 200.0)

	tests := []struct {
		name    string
		value   float64
		wantErr bool
	}{
		{"inside", 5, false},
		{"lower bound", -200, false},
		{"upper bound", 200, false},
		{"above", 250, true},
		{"below", -200.5, true},
		{"nan", math.NaN(), true},
		{"inf", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Validate(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestRangeReordersBounds(t *testing.T) {
	r := NewRange(10, -10)
	assert.Equal(t, -10, r.Min)
	assert.Equal(t, 10, r.Max)
	assert.Equal(t, "[-10, 10]", r.String())
}

func TestArange(t *testing.T) {
	assert.Equal(t, []int{0, 5, 10, 15}, Arange(0, 20, 5))
	assert.Equal(t, []float64{0, 0.1, 0.2, 0.3}, Arange(0.0, 0.4, 0.1))
	assert.Equal(t, []float64{-0.5, 0, 0.5}, Arange(-0.5, 1.0, 0.5))
	assert.Nil(t, Arange(5, 0, 1))
	assert.Nil(t, Arange(0, 5, 0))
}
