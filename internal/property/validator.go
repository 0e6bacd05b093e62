package property

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Number is the set of numeric logical value types the ordered validators accept.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// ValidatorKind tags the validator variants.
type ValidatorKind int

const (
	KindDiscreteSet ValidatorKind = iota + 1
	KindTruncatedDiscreteSet
	KindRange
)

func (k ValidatorKind) String() string {
	switch k {
	case KindDiscreteSet:
		return "discrete_set"
	case KindTruncatedDiscreteSet:
		return "truncated_discrete_set"
	case KindRange:
		return "range"
	default:
		return "unknown"
	}
}

// Validator checks a candidate logical value and returns the value to send,
// which may differ from the input for coercing validators.
type Validator[T comparable] interface {
	Kind() ValidatorKind
	Validate(v T) (T, error)
}

// enumerated is implemented by validators with a finite member list.
type enumerated[T comparable] interface {
	Members() []T
}

// DiscreteSet accepts exact members only.
type DiscreteSet[T comparable] struct {
	members []T
	index   map[T]struct{}
}

// NewDiscreteSet returns a validator accepting exactly the given values.
// Strings compare case-sensitively, numbers exactly.
func NewDiscreteSet[T comparable](values ...T) DiscreteSet[T] {
	s := DiscreteSet[T]{index: make(map[T]struct{}, len(values))}
	for _, v := range values {
		if _, dup := s.index[v]; dup {
			continue
		}
		s.index[v] = struct{}{}
		s.members = append(s.members, v)
	}
	return s
}

func (s DiscreteSet[T]) Kind() ValidatorKind { return KindDiscreteSet }

func (s DiscreteSet[T]) Validate(v T) (T, error) {
	if _, ok := s.index[v]; !ok {
		var zero T
		return zero, invalid(v, ReasonNotMember)
	}
	return v, nil
}

// Members returns the allowed values in declaration order.
func (s DiscreteSet[T]) Members() []T {
	return slices.Clone(s.members)
}

func (s DiscreteSet[T]) String() string {
	parts := make([]string, len(s.members))
	for i, m := range s.members {
		parts[i] = fmt.Sprint(m)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// TruncatedDiscreteSet snaps a value onto the nearest member after clamping
// it to [min(allowed), max(allowed)]. An exact midpoint resolves to the
// lower neighbour.
type TruncatedDiscreteSet[T Number] struct {
	sorted []T
}

// NewTruncatedDiscreteSet returns a coercing validator over the given grid.
// Order and duplicates in values do not matter.
func NewTruncatedDiscreteSet[T Number](values ...T) TruncatedDiscreteSet[T] {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return TruncatedDiscreteSet[T]{sorted: slices.Compact(sorted)}
}

func (s TruncatedDiscreteSet[T]) Kind() ValidatorKind { return KindTruncatedDiscreteSet }

func (s TruncatedDiscreteSet[T]) Validate(v T) (T, error) {
	var zero T
	if len(s.sorted) == 0 {
		return zero, invalid(v, ReasonEmptySet)
	}
	if v != v {
		return zero, invalid(v, "not a number")
	}

	lo, hi := s.sorted[0], s.sorted[len(s.sorted)-1]
	if v <= lo {
		return lo, nil
	}
	if v >= hi {
		return hi, nil
	}

	i, found := slices.BinarySearch(s.sorted, v)
	if found {
		return v, nil
	}
	below, above := s.sorted[i-1], s.sorted[i]
	if nearerBelow(v, below, above) {
		return below, nil
	}
	return above, nil
}

// nearerBelow reports whether below is at least as close to v as above,
// given below < v < above. Integer distances are computed in uint64: both
// are in [0, 2^64) so the wrapping subtraction is exact for every signed
// and unsigned width.
func nearerBelow[T Number](v, below, above T) bool {
	var half T = 1
	half /= 2
	if half != 0 {
		return float64(v)-float64(below) <= float64(above)-float64(v)
	}
	return uint64(v)-uint64(below) <= uint64(above)-uint64(v)
}

// Members returns the grid in ascending order.
func (s TruncatedDiscreteSet[T]) Members() []T {
	return slices.Clone(s.sorted)
}

// Range accepts values in the closed interval [Min, Max] and rejects the
// rest. It never coerces.
type Range[T Number] struct {
	Min T
	Max T
}

// NewRange returns a closed-interval validator. Swapped bounds are reordered.
func NewRange[T Number](lo, hi T) Range[T] {
	if hi < lo {
		lo, hi = hi, lo
	}
	return Range[T]{Min: lo, Max: hi}
}

func (r Range[T]) Kind() ValidatorKind { return KindRange }

func (r Range[T]) Validate(v T) (T, error) {
	// Written so NaN fails both comparisons.
	if !(v >= r.Min && v <= r.Max) {
		var zero T
		return zero, invalid(v, fmt.Sprintf("%s [%v, %v]", ReasonOutOfRange, r.Min, r.Max))
	}
	return v, nil
}

// Arange returns start, start+step, ... up to but excluding stop. Float
// grids are rounded to the precision of step so members format cleanly.
func Arange[T Number](start, stop, step T) []T {
	if step <= 0 || stop <= start {
		return nil
	}
	fStart, fStop, fStep := float64(start), float64(stop), float64(step)
	n := int(math.Ceil((fStop - fStart) / fStep))
	scale := math.Pow(10, float64(decimals(fStep)))

	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		x := math.Round((fStart+float64(i)*fStep)*scale) / scale
		if x >= fStop {
			break
		}
		out = append(out, T(x))
	}
	return out
}

func decimals(f float64) int {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func (s TruncatedDiscreteSet[T]) String() string {
	if len(s.sorted) == 0 {
		return "{}"
	}
	return fmt.Sprintf("%d steps in [%v, %v]", len(s.sorted), s.sorted[0], s.sorted[len(s.sorted)-1])
}

func (r Range[T]) String() string {
	return fmt.Sprintf("[%v, %v]", r.Min, r.Max)
}
