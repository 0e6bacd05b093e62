package property

import (
	"math"
	"strconv"
	"strings"
)

// Codec converts between a logical value and its unmapped text form. Parse
// is applied to instrument responses, so its failures are ProtocolErrors.
type Codec[T comparable] interface {
	Format(v T) string
	Parse(s string) (T, error)
}

// Built-in codecs.
var (
	String Codec[string]  = stringCodec{}
	Int    Codec[int]     = intCodec{}
	Float  Codec[float64] = floatCodec{}
)

type stringCodec struct{}

func (stringCodec) Format(v string) string { return v }

func (stringCodec) Parse(s string) (string, error) {
	return strings.TrimSpace(s), nil
}

type intCodec struct{}

func (intCodec) Format(v int) string { return strconv.Itoa(v) }

// Parse accepts plain integers and integral values in SCPI NR3 form
// ("+6.25000000E+002").
func (intCodec) Parse(s string) (int, error) {
	t := strings.TrimSpace(s)
	if n, err := strconv.Atoi(strings.TrimPrefix(t, "+")); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt || f >= -math.MinInt {
		return 0, &ProtocolError{Response: s, Reason: "not an integer"}
	}
	return int(f), nil
}

type floatCodec struct{}

// Format uses the shortest representation that parses back to v.
func (floatCodec) Format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (floatCodec) Parse(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &ProtocolError{Response: s, Reason: "not a number"}
	}
	return f, nil
}
