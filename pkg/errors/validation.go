package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// recordIDRegex matches identifiers accepted for stored records.
var recordIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateRecordID validates a record identifier before it is used as part of
// a file name or database key. It rejects names that could be used for path
// traversal or injection.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - Maximum length of 128 characters
//   - Letters, digits, '.', '_' and '-' only, not starting with punctuation
//   - No ".." sequences
func ValidateRecordID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidRecordID, "record id cannot be empty")
	}
	if len(id) > 128 {
		return New(ErrCodeInvalidRecordID, "record id too long (max 128 characters)")
	}
	if strings.Contains(id, "..") {
		return New(ErrCodeInvalidRecordID, "record id cannot contain path traversal sequences (..)")
	}
	if !recordIDRegex.MatchString(id) {
		return New(ErrCodeInvalidRecordID, "invalid record id: %q", id)
	}
	return nil
}

// ValidateFileName validates a record file name for safety.
// It ensures the name is a simple basename without path components.
func ValidateFileName(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidPath, "file name cannot be empty")
	}

	// Must be a simple filename, not a path
	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidPath, "file name cannot contain path separators")
	}

	if strings.HasPrefix(filename, ".") {
		return New(ErrCodeInvalidPath, "file name cannot be a hidden file")
	}

	return nil
}

// ValidateProjectPath validates a project path passed by a client.
//
// Validation rules:
//   - Path may be empty (server default)
//   - Maximum length of 1024 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
func ValidateProjectPath(path string) error {
	const maxPathLength = 1024
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
