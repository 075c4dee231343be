package errors

import (
	"strings"
	"unicode"
)

// ValidateMemberName validates the name of the JSON member inside a container
// before it is used to build a file path (for example the debug copy that is
// written next to the input).
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No path separators or traversal sequences
//   - Must end in .json
func ValidateMemberName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "member name cannot be empty")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "member name contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidInput, "member name cannot contain path separators: %q", name)
	}

	if name == "." || name == ".." || strings.Contains(name, "..") {
		return New(ErrCodeInvalidInput, "member name contains invalid characters: %q", name)
	}

	if !strings.HasSuffix(name, ".json") {
		return New(ErrCodeInvalidInput, "member name must end in .json: %q", name)
	}

	return nil
}

// ValidatePath validates a local file path given on the command line or in a
// config file.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidInput, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "path contains invalid characters")
		}
	}

	return nil
}
