package property

import (
	"fmt"
	"strings"
)

// ValueMap translates logical values to wire tokens and back. It is
// immutable once built and rejects tables that are not invertible.
type ValueMap[T comparable] struct {
	toWire   map[T]string
	fromWire map[string]T
}

// NewValueMap builds a bidirectional map from logical values to wire tokens.
func NewValueMap[T comparable](pairs map[T]string) (ValueMap[T], error) {
	m := ValueMap[T]{
		toWire:   make(map[T]string, len(pairs)),
		fromWire: make(map[string]T, len(pairs)),
	}
	for logical, token := range pairs {
		if prev, dup := m.fromWire[token]; dup {
			return ValueMap[T]{}, fmt.Errorf("value map: token %q used by both %v and %v", token, prev, logical)
		}
		m.toWire[logical] = token
		m.fromWire[token] = logical
	}
	return m, nil
}

// ToWire returns the token for a logical value.
func (m ValueMap[T]) ToWire(v T) (string, error) {
	token, ok := m.toWire[v]
	if !ok {
		return "", invalid(v, "not mapped")
	}
	return token, nil
}

// FromWire returns the logical value for a token read from the instrument.
// Surrounding whitespace is ignored; an unknown token is a ProtocolError.
func (m ValueMap[T]) FromWire(token string) (T, error) {
	v, ok := m.fromWire[strings.TrimSpace(token)]
	if !ok {
		var zero T
		return zero, &ProtocolError{Response: token, Reason: ReasonUnmapped}
	}
	return v, nil
}

// Has reports whether v has a token.
func (m ValueMap[T]) Has(v T) bool {
	_, ok := m.toWire[v]
	return ok
}

// Len returns the number of pairs.
func (m ValueMap[T]) Len() int {
	return len(m.toWire)
}
