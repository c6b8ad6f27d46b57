package pathutil

import (
	"path/filepath"
	"strings"
)

// NormalizePath converts all path separators to forward slashes.
// Go's os.Open/os.Stat accept forward slashes on all platforms.
func NormalizePath(p string) string {
	return filepath.ToSlash(p)
}

// TrimPrefix reports whether prefix is a directory prefix of p and returns the
// remainder. "/movies" prefixes "/movies/a.mkv" but not "/movies2/a.mkv".
// Both arguments are normalized first.
func TrimPrefix(p, prefix string) (string, bool) {
	p = NormalizePath(p)
	prefix = strings.TrimSuffix(NormalizePath(prefix), "/")
	if prefix == "" {
		return p, false
	}
	if p == prefix {
		return "", true
	}
	if rest, ok := strings.CutPrefix(p, prefix+"/"); ok {
		return "/" + rest, true
	}
	return p, false
}
