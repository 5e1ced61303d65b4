package metadata

import "strings"

// Path handling for the emulated hierarchy.
//
// Paths are absolute, "/"-separated, normalized strings: they start with
// "/", never end with "/" (except root itself), and contain no empty, "."
// or ".." segments. All path comparison in the store and the namespace
// engine happens on normalized strings, so normalization is the single
// place where path syntax is decided.

// NormalizePath normalizes a path string to canonical form.
//
// Returns a validation error for paths that are empty, relative, or
// contain "." or ".." segments. Duplicate and trailing slashes are
// collapsed.
func NormalizePath(path string) (string, error) {
	if path == "" {
		return "", NewValidation("path must not be empty", path)
	}
	if !strings.HasPrefix(path, "/") {
		return "", NewValidation("path must be absolute", path)
	}

	segments := make([]string, 0, 8)
	for _, segment := range strings.Split(path, "/") {
		switch segment {
		case "":
			// collapsed slash
		case ".", "..":
			return "", NewValidation("path must not contain relative segments", path)
		default:
			if err := ValidateName(segment); err != nil {
				return "", err
			}
			segments = append(segments, segment)
		}
	}

	if len(segments) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(segments, "/"), nil
}

// ValidateName checks that a leaf name is usable as a path segment.
func ValidateName(name string) error {
	if name == "" {
		return NewValidation("name must not be empty", name)
	}
	if name == "." || name == ".." {
		return NewValidation("name must not be a relative segment", name)
	}
	if strings.ContainsAny(name, "/\x00") {
		return NewValidation("name must not contain '/' or NUL", name)
	}
	if len(name) > 255 {
		return NewValidation("name must be at most 255 bytes", name)
	}
	return nil
}

// JoinPath joins a normalized parent path with a leaf name.
func JoinPath(parentPath, name string) string {
	if parentPath == "/" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// HasPathPrefix reports whether path equals prefix or lies inside the
// subtree rooted at prefix.
//
// The match is on path-segment boundaries: "/FooBar" is not inside "/Foo".
func HasPathPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// ReplacePathPrefix rewrites the oldPrefix portion of path to newPrefix.
//
// The caller must have established HasPathPrefix(path, oldPrefix) first.
func ReplacePathPrefix(path, oldPrefix, newPrefix string) string {
	if path == oldPrefix {
		return newPrefix
	}
	rest := path
	if oldPrefix != "/" {
		rest = strings.TrimPrefix(path, oldPrefix)
	}
	if newPrefix == "/" {
		return rest
	}
	return newPrefix + rest
}
