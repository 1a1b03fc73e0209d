package hdf5

import (
	"fmt"
	"strings"
)

// ParseAttrPath splits "/object/path@name" into the cleaned object path and
// the attribute name. The last '@' separates them.
func ParseAttrPath(p string) (objPath, name string, err error) {
	at := strings.LastIndexByte(p, '@')
	switch {
	case at < 0:
		return "", "", fmt.Errorf("%w: %q has no '@'", ErrInvalidPath, p)
	case at == len(p)-1:
		return "", "", fmt.Errorf("%w: %q names no attribute", ErrInvalidPath, p)
	}
	return CleanPath(p[:at]), p[at+1:], nil
}

// JoinAttrPath is the inverse of ParseAttrPath.
func JoinAttrPath(objPath, name string) string {
	if objPath == "/" {
		return "/@" + name
	}
	return objPath + "@" + name
}

// CleanPath makes p absolute without a trailing slash.
func CleanPath(p string) string {
	return "/" + strings.Trim(p, "/")
}

func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func childPath(parent, name string) string {
	return strings.TrimSuffix(parent, "/") + "/" + name
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 && i < len(p)-1 {
		return p[i+1:]
	}
	return p
}
