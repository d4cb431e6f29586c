package export

import (
	"fmt"
	"strings"
	"time"

	"flowform/internal/form"
)

// Submission is the stored shape the exporter consumes: the persisted
// response map plus its timestamp.
type Submission struct {
	Responses   map[string]any
	SubmittedAt time.Time
}

const cellTimeLayout = "1/2/2006, 3:04:05 PM"

// SubmissionsToCSV renders submissions as CSV: one header row of field
// labels in schema order plus a trailing "Submitted At" column, then
// one row per submission. An empty submission list yields a header-only
// CSV. Output order is deterministic given the schema and input order.
func SubmissionsToCSV(f *form.Form, submissions []Submission) string {
	headers := make([]string, 0, len(f.Schema.Fields)+1)
	for _, field := range f.Schema.Fields {
		headers = append(headers, field.Label)
	}
	headers = append(headers, "Submitted At")

	lines := make([]string, 0, len(submissions)+1)
	lines = append(lines, joinRow(headers))

	for _, sub := range submissions {
		row := make([]string, 0, len(headers))
		for _, field := range f.Schema.Fields {
			row = append(row, renderCell(field, sub.Responses[field.Name]))
		}
		row = append(row, sub.SubmittedAt.UTC().Format(cellTimeLayout))
		lines = append(lines, joinRow(row))
	}

	return strings.Join(lines, "\n")
}

func renderCell(field form.FieldDefinition, value any) string {
	if value == nil {
		return ""
	}

	switch field.Type {
	case form.FieldFile:
		// Filename if present, else the URL.
		switch v := value.(type) {
		case form.FileRecord:
			if v.Name != "" {
				return v.Name
			}
			return v.URL
		case map[string]any:
			if name, _ := v["filename"].(string); name != "" {
				return name
			}
			if u, _ := v["url"].(string); u != "" {
				return u
			}
			return ""
		}
		return fmt.Sprint(value)

	case form.FieldDate:
		s, isString := value.(string)
		if !isString {
			return fmt.Sprint(value)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return s
		}
		return t.UTC().Format(cellTimeLayout)
	}

	switch v := value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(value)
	}
}

func joinRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = escapeCell(c)
	}
	return strings.Join(escaped, ",")
}

// escapeCell quotes a cell only when it contains a comma, quote or
// newline, doubling any internal quotes.
func escapeCell(v string) string {
	if strings.ContainsAny(v, ",\"\n") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}
