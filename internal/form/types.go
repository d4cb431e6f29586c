package form

import "strings"

// FieldType enumerates the supported field types. The set is closed:
// validation dispatches on it with an exhaustive switch.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldLongText FieldType = "longtext"
	FieldEmail    FieldType = "email"
	FieldURL      FieldType = "url"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldChoice   FieldType = "choice"
	FieldScale    FieldType = "scale"
	FieldFile     FieldType = "file"
)

// Validation holds optional per-field constraints. Nil pointers mean
// "no constraint"; zero is a legitimate configured bound.
type Validation struct {
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	AcceptedTypes []string `json:"acceptedTypes,omitempty"`
}

// Options holds type-specific configuration: choices/multiSelect for
// choice fields, min/max/labels for scale fields.
type Options struct {
	Min         *int     `json:"min,omitempty"`
	Max         *int     `json:"max,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Choices     []string `json:"choices,omitempty"`
	MultiSelect bool     `json:"multiSelect,omitempty"`
}

// FieldDefinition is one named question in a form schema. Immutable for
// the lifetime of a conversation.
type FieldDefinition struct {
	Name       string      `json:"name"`
	Type       FieldType   `json:"type"`
	Label      string      `json:"label"`
	Required   bool        `json:"required"`
	Validation *Validation `json:"validation,omitempty"`
	Options    *Options    `json:"options,omitempty"`
}

// Schema is the ordered field set of a form.
type Schema struct {
	Fields []FieldDefinition `json:"fields"`
}

// Form is the shape supplied by the schema source.
type Form struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"ownerId,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Tone        string  `json:"tone,omitempty"`
	Schema      Schema  `json:"schema"`
	IsActive    bool    `json:"isActive"`
	CallbackURL *string `json:"callbackUrl,omitempty"`
}

// Field looks up a field definition by name.
func (f *Form) Field(name string) (*FieldDefinition, bool) {
	for i := range f.Schema.Fields {
		if f.Schema.Fields[i].Name == name {
			return &f.Schema.Fields[i], true
		}
	}
	return nil, false
}

// ErrorKind classifies validation failures so callers can distinguish
// user mistakes from malformed schemas.
type ErrorKind string

const (
	ErrConfiguration       ErrorKind = "configuration"
	ErrRequired            ErrorKind = "required"
	ErrTypeMismatch        ErrorKind = "type_mismatch"
	ErrFormat              ErrorKind = "format"
	ErrRange               ErrorKind = "range"
	ErrChoice              ErrorKind = "choice"
	ErrFileType            ErrorKind = "file_type"
	ErrMissingFileMetadata ErrorKind = "missing_file_metadata"
	ErrUnknownField        ErrorKind = "unknown_field"
)

// RawAnswer is the agent-supplied value for one field: a single string
// for scalar types, or a list for multi-select choice fields.
type RawAnswer struct {
	Text  string
	List  []string
	Multi bool
}

// Single wraps a scalar answer.
func Single(v string) RawAnswer { return RawAnswer{Text: v} }

// Multiple wraps a multi-select answer.
func Multiple(vs []string) RawAnswer { return RawAnswer{List: vs, Multi: true} }

func (a RawAnswer) empty() bool {
	if a.Multi {
		return len(a.List) == 0
	}
	return strings.TrimSpace(a.Text) == ""
}

// FileRecord is the canonical value of a validated file answer.
type FileRecord struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// Outcome is the result of validating one answer. Canonical holds the
// normalized value on success: a string, a []string for multi-select, or
// a FileRecord. A valid outcome for an optional empty answer carries no
// canonical value.
type Outcome struct {
	Valid     bool
	Kind      ErrorKind
	Error     string
	Canonical any
}

func pass(canonical any) Outcome {
	return Outcome{Valid: true, Canonical: canonical}
}

func fail(kind ErrorKind, msg string) Outcome {
	return Outcome{Valid: false, Kind: kind, Error: msg}
}
