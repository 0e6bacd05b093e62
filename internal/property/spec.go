package property

import (
	"errors"
	"fmt"
	"strings"
)

// Spec is the immutable description of one instrument property. Builder
// methods return modified copies, so a Spec declared at package level can
// be shared by every bound instrument.
type Spec[T comparable] struct {
	codec Codec[T]
	query string
	write string
	doc   string

	validator Validator[T]

	mapping ValueMap[T]
	mapped  bool

	checkGet bool
	checkSet bool

	suffix UnitSuffix

	err error
}

// Control declares a readable and writable property.
func Control[T comparable](codec Codec[T], query, write string) Spec[T] {
	return Spec[T]{codec: codec, query: query, write: write}
}

// Measurement declares a read-only property.
func Measurement[T comparable](codec Codec[T], query string) Spec[T] {
	return Spec[T]{codec: codec, query: query}
}

// Setting declares a write-only property.
func Setting[T comparable](codec Codec[T], write string) Spec[T] {
	return Spec[T]{codec: codec, write: write}
}

// Doc attaches a human description.
func (s Spec[T]) Doc(text string) Spec[T] {
	s.doc = text
	return s
}

// Validate sets the validator applied before every write.
func (s Spec[T]) Validate(v Validator[T]) Spec[T] {
	s.validator = v
	return s
}

// Map installs a logical->wire table. An invalid table is reported by
// Check and by binding.
func (s Spec[T]) Map(pairs map[T]string) Spec[T] {
	m, err := NewValueMap(pairs)
	if err != nil {
		s.err = errors.Join(s.err, err)
		return s
	}
	s.mapping, s.mapped = m, true
	return s
}

// CheckErrors enables the error-queue check after both get and set.
func (s Spec[T]) CheckErrors() Spec[T] {
	s.checkGet, s.checkSet = true, true
	return s
}

// CheckGetErrors enables the error-queue check after a get.
func (s Spec[T]) CheckGetErrors() Spec[T] {
	s.checkGet = true
	return s
}

// CheckSetErrors enables the error-queue check after a set.
func (s Spec[T]) CheckSetErrors() Spec[T] {
	s.checkSet = true
	return s
}

// Suffix appends a unit chosen at bind time to every formatted token.
func (s Spec[T]) Suffix(f UnitSuffix) Spec[T] {
	s.suffix = f
	return s
}

func (s Spec[T]) Readable() bool { return s.query != "" }
func (s Spec[T]) Writable() bool { return s.write != "" }

// Check reports a malformed spec.
func (s Spec[T]) Check() error {
	var errs []error
	if s.err != nil {
		errs = append(errs, s.err)
	}
	if s.codec == nil {
		errs = append(errs, errors.New("no codec"))
	}
	if s.query == "" && s.write == "" {
		errs = append(errs, errors.New("neither query nor write template"))
	}
	if strings.Contains(s.query, Placeholder) {
		errs = append(errs, fmt.Errorf("query template %q has a placeholder", s.query))
	}
	if s.write != "" && strings.Count(s.write, Placeholder) != 1 {
		errs = append(errs, fmt.Errorf("write template %q needs exactly one placeholder", s.write))
	}
	if s.mapped && s.validator != nil {
		if e, ok := s.validator.(enumerated[T]); ok {
			for _, m := range e.Members() {
				if !s.mapping.Has(m) {
					errs = append(errs, fmt.Errorf("allowed value %v has no wire token", m))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// encode runs the set half of the pipeline up to the command string.
func (s Spec[T]) encode(v T, units Units) (string, error) {
	if s.validator != nil {
		var err error
		if v, err = s.validator.Validate(v); err != nil {
			return "", err
		}
	}

	var token string
	if s.mapped {
		var err error
		if token, err = s.mapping.ToWire(v); err != nil {
			return "", err
		}
	} else {
		token = s.codec.Format(v)
	}

	if s.suffix != nil {
		token += s.suffix(units)
	}
	return FormatWrite(s.write, token), nil
}

// decode turns a raw response into a logical value.
func (s Spec[T]) decode(raw string) (T, error) {
	if s.mapped {
		return s.mapping.FromWire(raw)
	}
	return s.codec.Parse(raw)
}

// Description is the printable summary of a bound property.
type Description struct {
	Name       string `json:"name"`
	Doc        string `json:"doc,omitempty"`
	Query      string `json:"query,omitempty"`
	Write      string `json:"write,omitempty"`
	Validator  string `json:"validator,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Mapped     bool   `json:"mapped"`
	CheckGet   bool   `json:"checkGet"`
	CheckSet   bool   `json:"checkSet"`
}

func (s Spec[T]) describe(name string) Description {
	d := Description{
		Name:     name,
		Doc:      s.doc,
		Query:    s.query,
		Write:    s.write,
		Mapped:   s.mapped,
		CheckGet: s.checkGet,
		CheckSet: s.checkSet,
	}
	if s.validator != nil {
		d.Validator = s.validator.Kind().String()
		if str, ok := s.validator.(fmt.Stringer); ok {
			d.Constraint = str.String()
		}
	}
	return d
}
