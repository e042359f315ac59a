package middleware

import (
	"fmt"
	"path/filepath"
	"strings"

	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
)

// Input validation and sanitization utilities

// ValidateTestType checks the code is one the collaborator understands.
func ValidateTestType(code string) (domain.TestType, error) {
	tt := domain.TestType(strings.ToUpper(strings.TrimSpace(code)))
	if !tt.Valid() {
		return "", fmt.Errorf("%w: invalid test type %q (allowed: SV, SR, PR)", domain.ErrInvalidRequest, code)
	}
	return tt, nil
}

// ValidateFilePaths checks the recording paths sent with an analysis. The
// collaborator joins several paths with "|", so that character is refused.
func ValidateFilePaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no files selected", domain.ErrInvalidRequest)
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: empty file path", domain.ErrInvalidRequest)
		}
		if !filepath.IsAbs(p) {
			return nil, fmt.Errorf("%w: path must be absolute: %s", domain.ErrInvalidRequest, p)
		}

		// Block dangerous patterns
		if strings.ContainsAny(p, "|\x00\n\r") {
			return nil, fmt.Errorf("%w: invalid characters in path: %q", domain.ErrInvalidRequest, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out, nil
}

// SanitizeFilename turns a suggested download name into a safe base name.
func SanitizeFilename(name, fallback string) string {
	name = SanitizeString(filepath.Base(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
