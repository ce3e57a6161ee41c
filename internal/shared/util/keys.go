package util

import (
	"errors"
	"path"
	"strings"
)

// ErrInvalidKey is returned for storage keys that are empty or escape their root.
var ErrInvalidKey = errors.New("invalid storage key")

// CleanKey normalizes a slash separated storage key and rejects traversal.
func CleanKey(key string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	if s == "" || strings.HasPrefix(s, "/") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(s, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	clean := path.Clean(s)
	if clean == "." {
		return "", ErrInvalidKey
	}
	return clean, nil
}
