package form

import (
	"fmt"
	"strings"
)

// mimeTypesByExtension maps accepted file extensions to the MIME types
// browsers report for them. Extensions absent from this table contribute
// nothing to an allow-list.
var mimeTypesByExtension = map[string][]string{
	"pdf":  {"application/pdf"},
	"doc":  {"application/msword"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	"xls":  {"application/vnd.ms-excel"},
	"xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	"csv":  {"text/csv", "application/csv"},
	"txt":  {"text/plain"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"png":  {"image/png"},
	"gif":  {"image/gif"},
	"svg":  {"image/svg+xml"},
	"webp": {"image/webp"},
	"mp3":  {"audio/mpeg"},
	"mp4":  {"video/mp4"},
	"zip":  {"application/zip", "application/x-zip-compressed"},
	"json": {"application/json"},
}

// ValidateFile checks uploaded-file metadata against the field's
// accepted-type allow-list and normalizes it into a FileRecord. An
// allow-list entry that maps to no known MIME type is skipped rather
// than treated as an error; if the whole computed list ends up empty
// the MIME check is skipped entirely.
func ValidateFile(field FieldDefinition, fileURL, fileName, mimeType string) Outcome {
	if fileURL == "" || fileName == "" {
		if field.Required {
			return fail(ErrRequired, "Please upload a file")
		}
		return Outcome{Valid: true}
	}

	if field.Validation != nil && len(field.Validation.AcceptedTypes) > 0 {
		allowed := make(map[string]bool)
		for _, ext := range field.Validation.AcceptedTypes {
			key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			for _, m := range mimeTypesByExtension[key] {
				allowed[m] = true
			}
		}
		if len(allowed) > 0 && !allowed[strings.ToLower(mimeType)] {
			return fail(ErrFileType, fmt.Sprintf("File type not accepted. Please upload one of: %s",
				strings.Join(normalizeExtensions(field.Validation.AcceptedTypes), ", ")))
		}
	}

	return pass(FileRecord{URL: fileURL, Name: fileName, MimeType: mimeType})
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
