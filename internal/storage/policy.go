package storage

import (
	"fmt"
	"mime"
	"strings"
)

// UploadPolicy constrains what respondents may upload, independent of
// any per-field accepted-type list.
type UploadPolicy struct {
	MaxFileMB float64
	MimeTypes []string
}

// MaxFileBytes returns the size cap in bytes, or 0 when unlimited.
func (p *UploadPolicy) MaxFileBytes() int64 {
	if p == nil || p.MaxFileMB <= 0 {
		return 0
	}
	return int64(p.MaxFileMB * 1024 * 1024)
}

// ValidateUpload validates an incoming upload against the policy
func (p *UploadPolicy) ValidateUpload(contentType string, sizeBytes int64) error {
	if p == nil {
		return nil
	}

	if max := p.MaxFileBytes(); max > 0 && sizeBytes > max {
		return fmt.Errorf("file size %d bytes exceeds maximum %d bytes (%.2f MB)",
			sizeBytes, max, p.MaxFileMB)
	}

	if len(p.MimeTypes) > 0 && !p.matchesMimeType(contentType) {
		return fmt.Errorf("content type %s is not allowed. Allowed types: %v",
			contentType, p.MimeTypes)
	}

	return nil
}

// matchesMimeType checks contentType against the allowed patterns.
// Wildcard patterns like "image/*" are supported.
func (p *UploadPolicy) matchesMimeType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	for _, allowed := range p.MimeTypes {
		if strings.HasSuffix(allowed, "/*") {
			prefix := strings.TrimSuffix(allowed, "/*")
			if strings.HasPrefix(mediaType, prefix+"/") {
				return true
			}
		} else if mediaType == allowed {
			return true
		}
	}
	return false
}
