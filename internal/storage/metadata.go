package storage

import (
	"fmt"
	"strconv"
)

// UploadMetadata represents file metadata attached to a submission
type UploadMetadata struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     string `json:"size,omitempty"`
	MimeType string `json:"mimeType"`
	SHA256   string `json:"sha256,omitempty"`
}

// NormalizeUploadMetadata normalizes loosely typed metadata from a map.
// Clients send size as either a number or a string.
func NormalizeUploadMetadata(file map[string]interface{}) UploadMetadata {
	meta := UploadMetadata{}

	if name, ok := file["name"].(string); ok {
		meta.Name = name
	}
	if url, ok := file["url"].(string); ok {
		meta.URL = url
	}
	switch size := file["size"].(type) {
	case string:
		meta.Size = size
	case float64:
		meta.Size = strconv.FormatInt(int64(size), 10)
	case int64:
		meta.Size = strconv.FormatInt(size, 10)
	case int:
		meta.Size = strconv.Itoa(size)
	}
	if mime, ok := file["mimeType"].(string); ok {
		meta.MimeType = mime
	} else if contentType, ok := file["contentType"].(string); ok {
		meta.MimeType = contentType
	}
	if sha, ok := file["sha256"].(string); ok {
		meta.SHA256 = sha
	}

	return meta
}

// ValidateUploadMetadata validates that upload metadata has required fields
func ValidateUploadMetadata(meta UploadMetadata) error {
	if meta.Name == "" {
		return fmt.Errorf("file name is required")
	}
	if meta.URL == "" {
		return fmt.Errorf("file URL is required")
	}
	if meta.MimeType == "" {
		return fmt.Errorf("file MIME type is required")
	}
	return nil
}
