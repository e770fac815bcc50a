// Package security validates user supplied file paths and performs file IO
// that must not leave partial or world-readable files behind.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrForbiddenPath is returned for paths carrying shell metacharacters.
var ErrForbiddenPath = errors.New("forbidden file path")

// forbiddenChars are shell metacharacters never expected in an archive,
// ledger, cache or token path.
var forbiddenChars = []string{";", "&", "|", "$", "`", "<", ">", "!", "\n", "\r"}

// ValidateFilePath cleans path, makes it absolute and resolves symlinks when
// the file exists. A missing file is not an error here.
func ValidateFilePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrForbiddenPath)
	}
	for _, char := range forbiddenChars {
		if strings.Contains(path, char) {
			return "", fmt.Errorf("%w: character %q in %s", ErrForbiddenPath, char, path)
		}
	}

	clean, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	resolved, err := filepath.EvalSymlinks(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return clean, nil
		}
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return resolved, nil
}

// SafeReadFile reads a file after validating its path. A missing file
// yields an error matching os.ErrNotExist.
func SafeReadFile(path string) ([]byte, error) {
	clean, err := ValidateFilePath(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - path is validated above
	return os.ReadFile(clean)
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	clean, err := ValidateFilePath(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(clean)
	return err == nil && info.Mode().IsRegular()
}
