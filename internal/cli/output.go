package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v2"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// table is a rendered view of a result for the table format.
type table struct {
	headers []string
	rows    [][]string
}

// render writes data in format. Table output uses tbl; the structured
// formats encode data itself.
func render(w io.Writer, format string, data interface{}, tbl *table) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case FormatTable, "":
		if tbl == nil {
			_, err := fmt.Fprintln(w, data)
			return err
		}
		return tbl.render(w)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func (t *table) render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.headers, "\t"))
	}
	for _, row := range t.rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
