// Package security holds checks applied to user-supplied file paths.
package security

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrInvalidPath   = errors.New("invalid file path")
)

// ValidateFilePath rejects empty paths and relative paths that climb above
// their starting directory. When baseDir is set the path must also resolve
// inside it.
func ValidateFilePath(path, baseDir string) error {
	if strings.TrimSpace(path) == "" || strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}

	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) && climbs(cleanPath) {
		return ErrPathTraversal
	}

	if baseDir == "" {
		return nil
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || climbs(rel) {
		return ErrPathTraversal
	}
	return nil
}

func climbs(cleanPath string) bool {
	return cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator))
}
