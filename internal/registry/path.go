package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidPath matches every path rejected by ValidatePath.
var ErrInvalidPath = errors.New("invalid path")

// ValidatePath checks that path names a location inside root and returns
// the registry key for it: cleaned, relative, slash-separated.
//
// Absolute paths, paths that climb out of root, and paths whose symlinks
// resolve outside root are rejected. A path that does not exist yet is
// checked lexically only.
func ValidatePath(root, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidPath, path)
	}
	native := filepath.FromSlash(path)
	if filepath.IsAbs(native) || strings.HasPrefix(path, "/") || filepath.VolumeName(native) != "" {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, path)
	}

	clean := filepath.Clean(native)
	if clean == "." {
		return "", fmt.Errorf("%w: %q names the project root", ErrInvalidPath, path)
	}
	if escapes(clean) {
		return "", fmt.Errorf("%w: %q escapes the project root", ErrInvalidPath, path)
	}

	if err := checkSymlinks(root, clean); err != nil {
		return "", err
	}
	return filepath.ToSlash(clean), nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func checkSymlinks(root, rel string) error {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		// Root problems surface when the caller touches the file.
		return nil
	}
	resolved, err := filepath.EvalSymlinks(filepath.Join(root, rel))
	if err != nil {
		return nil
	}
	inside, err := filepath.Rel(realRoot, resolved)
	if err != nil || escapes(inside) || filepath.IsAbs(inside) {
		return fmt.Errorf("%w: %q resolves outside the project root", ErrInvalidPath, filepath.ToSlash(rel))
	}
	return nil
}
