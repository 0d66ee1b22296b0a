// Package env provides small helpers over raw process environment access.
package env

import (
	"os"
	"strings"
)

// Get reads key from the environment, falling back when it is unset or blank.
func Get(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
