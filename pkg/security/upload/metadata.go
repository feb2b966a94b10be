// Package upload validates meal-photo uploads: the declared metadata first,
// then the leading bytes of the content to defeat extension and MIME spoofing.
package upload

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"food-diary/pkg/security/validation"
)

const (
	// MaxSizeBytes is the largest accepted upload (10 MiB).
	MaxSizeBytes int64 = 10 << 20

	// MaxNameLength is the longest accepted file name, in characters.
	MaxNameLength = 255
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
}

// Descriptor is the client-supplied description of an upload.
type Descriptor struct {
	Name         string
	DeclaredType string
	SizeBytes    int64
}

// Result aggregates every violated rule for one file.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors validation.Errors `json:"errors,omitempty"`
}

// ValidateMetadata checks size, declared type, name and extension. Every rule
// is evaluated; the result lists all failures, not just the first.
func ValidateMetadata(d Descriptor) Result {
	var errs validation.Errors

	if d.SizeBytes > MaxSizeBytes {
		errs.Add("size", "file too large")
	}

	if !allowedTypes[strings.ToLower(d.DeclaredType)] {
		errs.Add("type", fmt.Sprintf("unsupported file type %q", d.DeclaredType))
	}

	switch n := utf8.RuneCountInString(d.Name); {
	case n == 0:
		errs.Add("name", "filename is required")
	case n > MaxNameLength:
		errs.Add("name", fmt.Sprintf("filename exceeds %d characters", MaxNameLength))
	}

	if hasIllegalChars(d.Name) {
		errs.Add("name", "filename contains illegal characters")
	}

	if !allowedExtensions[Extension(d.Name)] {
		errs.Add("name", "unsupported extension")
	}

	return Result{Valid: errs.Empty(), Errors: errs}
}

// Extension returns the lowercased suffix after the last '.', or "" if none.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func hasIllegalChars(name string) bool {
	for _, r := range name {
		if r < 32 {
			return true
		}
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return true
		}
	}
	return false
}
