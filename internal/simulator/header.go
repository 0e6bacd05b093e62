package simulator

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// fault is an error queue entry.
type fault struct {
	code    int
	message string
}

// Standard SCPI faults raised by the simulator.
var (
	faultUndefinedHeader  = &fault{-113, "Undefined header"}
	faultParamNotAllowed  = &fault{-108, "Parameter not allowed"}
	faultMissingParameter = &fault{-109, "Missing parameter"}
	faultInvalidSuffix    = &fault{-131, "Invalid suffix"}
	faultDataType         = &fault{-104, "Data type error"}
	faultOutOfRange       = &fault{-222, "Data out of range"}
	faultIllegalValue     = &fault{-224, "Illegal parameter value"}
	faultQueueOverflow    = fault{-350, "Queue overflow"}
)

var multipliers = map[string]map[string]float64{
	"HZ":  {"": 1, "HZ": 1, "KHZ": 1e3, "MHZ": 1e6, "GHZ": 1e9},
	"DB":  {"": 1, "DB": 1},
	"DBM": {"": 1, "DBM": 1},
}

// normalize maps a program header onto its table key: upper case, no
// leading colon, numeric suffixes dropped ("CALC:MARK2:Y" -> "CALC:MARK:Y").
func normalize(header string) string {
	header = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(header), ":"))
	if strings.HasPrefix(header, "*") {
		return header
	}
	segs := strings.Split(header, ":")
	for i, s := range segs {
		segs[i] = strings.TrimRightFunc(s, unicode.IsDigit)
	}
	return strings.Join(segs, ":")
}

// parse validates arg and returns the stored form of the value.
func (h *Header) parse(arg string) (string, *fault) {
	arg = strings.TrimSpace(arg)
	switch h.Kind {
	case KindFloat:
		v, f := parseNumber(arg, h.Unit)
		if f != nil {
			return "", f
		}
		if !h.inRange(v) {
			return "", faultOutOfRange
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil

	case KindInt:
		v, f := parseNumber(arg, "")
		if f != nil {
			return "", f
		}
		if v != math.Trunc(v) {
			return "", faultDataType
		}
		n := strconv.Itoa(int(v))
		if len(h.Values) > 0 {
			if !contains(h.Values, n) {
				return "", faultIllegalValue
			}
			return n, nil
		}
		if !h.inRange(v) {
			return "", faultOutOfRange
		}
		return n, nil

	case KindBool:
		switch strings.ToUpper(arg) {
		case "ON", "1":
			return "1", nil
		case "OFF", "0":
			return "0", nil
		}
		return "", faultIllegalValue

	case KindEnum:
		for _, v := range h.Values {
			if strings.EqualFold(v, arg) {
				return v, nil
			}
		}
		return "", faultIllegalValue

	default:
		return strings.Trim(arg, `"'`), nil
	}
}

func (h *Header) inRange(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if h.Min != nil && v < *h.Min {
		return false
	}
	if h.Max != nil && v > *h.Max {
		return false
	}
	return true
}

// parseNumber parses a decimal value with an optional unit suffix.
func parseNumber(arg, unit string) (float64, *fault) {
	i := strings.IndexFunc(arg, func(r rune) bool {
		return unicode.IsLetter(r) && r != 'e' && r != 'E'
	})
	num, suffix := arg, ""
	if i >= 0 {
		num, suffix = strings.TrimSpace(arg[:i]), strings.ToUpper(arg[i:])
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, faultDataType
	}
	if suffix == "" {
		return v, nil
	}
	mult, ok := multipliers[strings.ToUpper(unit)][suffix]
	if !ok {
		return 0, faultInvalidSuffix
	}
	return v * mult, nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
