package xzip

import "strings"

// EnclosedName validates that name, once normalized, stays within the extraction root: no NUL bytes, no absolute
// path, and no component sequence that escapes upward past the root (".." climbing out). "foo/../bar" is accepted
// and normalizes to "bar" since it never actually escapes. Implemented component-by-component so behavior doesn't
// depend on the host OS's path package (a name containing a literal backslash must still be handled the same way
// on Linux as on Windows).
func EnclosedName(name string) (string, bool) {
	if strings.IndexByte(name, 0) >= 0 {
		return "", false
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return "", false
	}
	if len(name) >= 2 && name[1] == ':' {
		return "", false // drive-letter absolute path, e.g. "C:\\"
	}

	normalized := make([]string, 0, strings.Count(name, "/")+1)
	for _, component := range splitPathComponents(name) {
		switch component {
		case "", ".":
			continue
		case "..":
			if len(normalized) == 0 {
				return "", false
			}
			normalized = normalized[:len(normalized)-1]
		default:
			normalized = append(normalized, component)
		}
	}

	return strings.Join(normalized, "/"), true
}

// MangledName produces a best-effort, always-safe relative path from name: it strips any leading slash, drops every
// ".." component outright (rather than rejecting the whole name), and truncates at the first NUL byte.
func MangledName(name string) string {
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	components := splitPathComponents(name)
	kept := make([]string, 0, len(components))
	for _, c := range components {
		switch c {
		case "", ".", "..":
			continue
		default:
			kept = append(kept, c)
		}
	}

	return strings.Join(kept, "/")
}

// splitPathComponents splits on both '/' and '\' so a name decoded verbatim from a Windows-produced archive
// (which may legitimately use '\' as its separator) still normalizes correctly on any host OS.
func splitPathComponents(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}
