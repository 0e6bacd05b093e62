package simulator

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed profiles/*.yaml
var builtin embed.FS

// Header kinds.
const (
	KindFloat   = "float"
	KindInt     = "int"
	KindBool    = "bool"
	KindEnum    = "enum"
	KindString  = "string"
	KindReading = "reading"
	KindAction  = "action"
)

// Profile is the header table of one simulated model.
type Profile struct {
	Model    string   `yaml:"model"`
	Identity string   `yaml:"identity"`
	Options  []string `yaml:"options"`
	Headers  []Header `yaml:"headers"`
}

// Header describes one settable or readable SCPI header. Names use the
// short form without a leading colon or numeric suffixes.
type Header struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Kind    string   `yaml:"kind"`
	Unit    string   `yaml:"unit"`
	Default string   `yaml:"default"`
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	Values  []string `yaml:"values"`
}

// LoadProfile returns the built-in profile for model.
func LoadProfile(model string) (*Profile, error) {
	data, err := builtin.ReadFile("profiles/" + model + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no simulator profile for model %q", model)
	}
	return parseProfile(data)
}

// LoadProfileFile reads a profile from disk.
func LoadProfileFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseProfile(data)
}

// Models lists the built-in profiles.
func Models() []string {
	entries, err := builtin.ReadDir("profiles")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out
}

func parseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Model, err)
	}
	return &p, nil
}

// Validate checks that every header is well formed and its default is
// accepted by its own rules.
func (p *Profile) Validate() error {
	if p.Model == "" {
		return errors.New("model is required")
	}
	var errs []error
	seen := make(map[string]bool)
	for _, h := range p.Headers {
		for _, name := range append([]string{h.Name}, h.Aliases...) {
			key := normalize(name)
			if seen[key] {
				errs = append(errs, fmt.Errorf("header %s defined twice", key))
			}
			seen[key] = true
		}
		switch h.Kind {
		case KindAction:
			continue
		case KindReading, KindString:
		case KindFloat, KindInt, KindBool, KindEnum:
			if _, fault := h.parse(h.Default); fault != nil {
				errs = append(errs, fmt.Errorf("header %s: default %q: %s", h.Name, h.Default, fault.message))
			}
		default:
			errs = append(errs, fmt.Errorf("header %s: unknown kind %q", h.Name, h.Kind))
		}
		if h.Kind == KindEnum && len(h.Values) == 0 {
			errs = append(errs, fmt.Errorf("header %s: enum without values", h.Name))
		}
	}
	return errors.Join(errs...)
}
