package postgres

import "strings"

// history columns that must never be stored empty get "-"
func stringOrDash[T ~string](v T) string {
	if strings.TrimSpace(string(v)) == "" {
		return "-"
	}
	return string(v)
}
