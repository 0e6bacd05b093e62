package property

import "strings"

// Placeholder marks the substitution site in a write template.
const Placeholder = "%s"

// FormatQuery returns the command for a query template. Query templates
// carry no substitution site, so this is the template itself.
func FormatQuery(template string) string {
	return template
}

// FormatWrite splices token into the single placeholder of template. No
// escaping is applied.
func FormatWrite(template, token string) string {
	return strings.Replace(template, Placeholder, token, 1)
}

// Units holds the unit strings a driver appends to numeric tokens. It is
// fixed when properties are bound.
type Units struct {
	Frequency string `yaml:"frequency" json:"frequency"`
	Power     string `yaml:"power" json:"power"`
}

// DefaultUnits matches the instruments' power-on state.
func DefaultUnits() Units {
	return Units{Frequency: "GHz", Power: "DBM"}
}

// UnitSuffix picks the suffix appended to a formatted token.
type UnitSuffix func(Units) string

// FrequencyUnit appends the bound frequency unit.
func FrequencyUnit(u Units) string { return u.Frequency }

// PowerUnit appends the bound power unit.
func PowerUnit(u Units) string { return u.Power }

// Literal appends a fixed suffix.
func Literal(s string) UnitSuffix {
	return func(Units) string { return s }
}
