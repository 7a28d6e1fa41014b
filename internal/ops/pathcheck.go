package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akademi4eg/aka-assistant/internal/errors"
)

// sourceExtensions are the document formats summarize accepts.
var sourceExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
	".pdf":      true,
}

// ValidateSourcePath checks a document path before it is read: a supported
// extension, and an existing regular file. Relative paths, including ones
// with "..", resolve against the working directory.
func ValidateSourcePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("path is required")
	}

	cleaned := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleaned))
	if !sourceExtensions[ext] {
		return errors.NewInvalidRequest(fmt.Sprintf("unsupported document extension %q (want .txt, .md or .pdf)", ext))
	}

	info, err := os.Stat(cleaned)
	if os.IsNotExist(err) {
		return errors.NewNotFound(path)
	}
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	if !info.Mode().IsRegular() {
		return errors.NewInvalidRequest("path must be a regular file")
	}
	return nil
}

// RejectTraversal refuses paths with ".." components. The MCP server applies
// it to tool-supplied paths; a local CLI user may point anywhere.
func RejectTraversal(path string) error {
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}
	return nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
