package form

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate runs the type-appropriate validator for a single answer.
// Required-emptiness is checked before any type-specific rule; optional
// empty answers short-circuit to valid with no canonical value. File
// fields are never validated here (see ValidateFile) - reaching this
// function without file metadata is itself the error.
func Validate(field FieldDefinition, answer RawAnswer) Outcome {
	if answer.empty() {
		if field.Required {
			return fail(ErrRequired, "This field is required")
		}
		return Outcome{Valid: true}
	}

	switch field.Type {
	case FieldText, FieldLongText:
		if answer.Multi {
			return fail(ErrTypeMismatch, "Expected a single value, not a list")
		}
		return pass(answer.Text)

	case FieldEmail:
		if answer.Multi {
			return fail(ErrTypeMismatch, "Expected a single value, not a list")
		}
		v := strings.TrimSpace(answer.Text)
		if !emailPattern.MatchString(v) {
			return fail(ErrFormat, "Please provide a valid email address (e.g., name@example.com)")
		}
		return pass(v)

	case FieldURL:
		if answer.Multi {
			return fail(ErrTypeMismatch, "Expected a single value, not a list")
		}
		v := strings.TrimSpace(answer.Text)
		u, err := url.Parse(v)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fail(ErrFormat, "Please provide a valid URL (e.g., https://example.com)")
		}
		return pass(v)

	case FieldNumber:
		return validateNumber(field, answer)

	case FieldDate:
		return validateDate(field, answer)

	case FieldChoice:
		return validateChoice(field, answer)

	case FieldScale:
		return validateScale(field, answer)

	case FieldFile:
		return fail(ErrMissingFileMetadata, "Please upload a file")

	default:
		return fail(ErrConfiguration, fmt.Sprintf("Unknown field type %q", field.Type))
	}
}

func validateNumber(field FieldDefinition, answer RawAnswer) Outcome {
	if answer.Multi {
		return fail(ErrTypeMismatch, "Expected a single value, not a list")
	}
	v := strings.TrimSpace(answer.Text)
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fail(ErrFormat, "Please provide a valid number")
	}
	if field.Validation != nil {
		if field.Validation.Min != nil && n < *field.Validation.Min {
			return fail(ErrRange, "Number must be at least "+formatBound(*field.Validation.Min))
		}
		if field.Validation.Max != nil && n > *field.Validation.Max {
			return fail(ErrRange, "Number must be at most "+formatBound(*field.Validation.Max))
		}
	}
	return pass(v)
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func validateChoice(field FieldDefinition, answer RawAnswer) Outcome {
	if field.Options == nil || len(field.Options.Choices) == 0 {
		return fail(ErrConfiguration, "Invalid field configuration: choice field has no choices")
	}
	choices := field.Options.Choices

	if field.Options.MultiSelect {
		if !answer.Multi {
			return fail(ErrTypeMismatch, "Expected a list of selections")
		}
		canonical := make([]string, 0, len(answer.List))
		var invalid []string
		for _, entry := range answer.List {
			matched, found := matchChoice(entry, choices)
			if !found {
				invalid = append(invalid, entry)
				continue
			}
			canonical = append(canonical, matched)
		}
		if len(invalid) > 0 {
			return fail(ErrChoice, fmt.Sprintf("Invalid choices: %s. Please choose from: %s",
				strings.Join(invalid, ", "), strings.Join(choices, ", ")))
		}
		return pass(canonical)
	}

	if answer.Multi {
		return fail(ErrTypeMismatch, "Expected a single selection, not a list")
	}
	if _, found := matchChoice(answer.Text, choices); !found {
		return fail(ErrChoice, "Please choose one of: "+strings.Join(choices, ", "))
	}
	return pass(strings.TrimSpace(answer.Text))
}

// SplitSelections reconstructs the entries of a comma-joined
// multi-select answer. A configured choice may itself contain a comma,
// so runs of segments are matched greedily against the choice list
// before falling back to a plain split.
func SplitSelections(value string, choices []string) []string {
	parts := strings.Split(value, ",")
	entries := make([]string, 0, len(parts))
	for i := 0; i < len(parts); {
		consumed := 0
		for j := len(parts); j > i; j-- {
			candidate := strings.TrimSpace(strings.Join(parts[i:j], ","))
			if _, found := matchChoice(candidate, choices); found {
				entries = append(entries, candidate)
				consumed = j - i
				break
			}
		}
		if consumed == 0 {
			if p := strings.TrimSpace(parts[i]); p != "" {
				entries = append(entries, p)
			}
			consumed = 1
		}
		i += consumed
	}
	return entries
}

func matchChoice(value string, choices []string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, c := range choices {
		if strings.ToLower(strings.TrimSpace(c)) == normalized {
			return c, true
		}
	}
	return "", false
}

func validateScale(field FieldDefinition, answer RawAnswer) Outcome {
	if answer.Multi {
		return fail(ErrTypeMismatch, "Expected a single value, not a list")
	}
	if field.Options == nil || field.Options.Min == nil || field.Options.Max == nil ||
		*field.Options.Min >= *field.Options.Max {
		return fail(ErrConfiguration, "Invalid field configuration: scale field is missing its bounds")
	}
	min, max := *field.Options.Min, *field.Options.Max

	v := strings.TrimSpace(answer.Text)
	n, err := strconv.Atoi(v)
	if err != nil {
		return fail(ErrFormat, fmt.Sprintf("Please provide a number between %d and %d", min, max))
	}
	if n < min || n > max {
		return fail(ErrRange, fmt.Sprintf("Please choose a number between %d and %d", min, max))
	}
	return pass(v)
}
