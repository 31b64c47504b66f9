package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// MaxQueryLength bounds a single user message.
const MaxQueryLength = 4000

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateSessionID accepts generated UUIDs and short user-chosen names.
// Session IDs become file names, so separators and dots are rejected.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session ID format: %q", id)
	}
	return nil
}

// SessionFile returns the path of a session export inside dir.
func SessionFile(dir, id string) (string, error) {
	if err := ValidateSessionID(id); err != nil {
		return "", err
	}
	return filepath.Join(dir, id+".json"), nil
}

// ValidateQuery checks a user message before it reaches the LLM.
func ValidateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("query is empty")
	}
	if len([]rune(q)) > MaxQueryLength {
		return fmt.Errorf("query exceeds %d characters", MaxQueryLength)
	}
	for _, r := range q {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return fmt.Errorf("query contains control character %U", r)
		}
	}
	return nil
}

// ValidatePath rejects paths that climb out of their base directory.
func ValidatePath(path string) error {
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", path)
	}
	return nil
}
