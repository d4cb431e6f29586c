package engine

import (
	"fmt"

	"flowform/internal/form"
)

// FileUpload carries the uploaded-file metadata accompanying a
// file-type answer during collection.
type FileUpload struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

type CollectResult struct {
	Valid      bool             `json:"valid"`
	FieldName  string           `json:"fieldName,omitempty"`
	FieldLabel string           `json:"fieldLabel,omitempty"`
	ErrorKind  form.ErrorKind   `json:"errorKind,omitempty"`
	Error      string           `json:"error,omitempty"`
	Value      any              `json:"canonicalValue,omitempty"`
	FileRecord *form.FileRecord `json:"fileRecord,omitempty"`
}

// Collect validates a single answer against its field definition. It
// performs no persistence and may be called repeatedly, in any order;
// a field is never rejected because other fields are unanswered.
func (e *Engine) Collect(f *form.Form, fieldName string, answer form.RawAnswer, file *FileUpload) CollectResult {
	field, found := f.Field(fieldName)
	if !found {
		return CollectResult{
			Valid:     false,
			ErrorKind: form.ErrUnknownField,
			Error:     fmt.Sprintf("Field %q not found in form schema", fieldName),
		}
	}

	var outcome form.Outcome
	if field.Type == form.FieldFile {
		if file == nil || file.Name == "" || file.MimeType == "" {
			return CollectResult{
				Valid:      false,
				FieldName:  field.Name,
				FieldLabel: field.Label,
				ErrorKind:  form.ErrMissingFileMetadata,
				Error:      "Please upload a file",
			}
		}
		outcome = form.ValidateFile(*field, answer.Text, file.Name, file.MimeType)
	} else {
		outcome = form.Validate(*field, answer)
	}

	if !outcome.Valid {
		return CollectResult{
			Valid:      false,
			FieldName:  field.Name,
			FieldLabel: field.Label,
			ErrorKind:  outcome.Kind,
			Error:      outcome.Error,
		}
	}

	result := CollectResult{
		Valid:      true,
		FieldName:  field.Name,
		FieldLabel: field.Label,
		Value:      outcome.Canonical,
	}
	if rec, isFile := outcome.Canonical.(form.FileRecord); isFile {
		result.FileRecord = &rec
	}
	return result
}
