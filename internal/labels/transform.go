package labels

import "strings"

// isSeparator reports whether c may follow a stripped prefix.
func isSeparator(c byte) bool {
	return c == '_' || c == '-' || c == ' '
}

// ComputeDisplayed returns original with the first matching prefix removed.
//
// Prefixes are tried in list order and only the first literal match is applied, so
// ["foo", "foo-bar"] turns "foo-bar-baz" into "bar-baz". After the prefix, at most one
// separator ('_', '-' or ' ') is dropped.
func ComputeDisplayed(original string, prefixes []string) string {
	for _, prefix := range prefixes {
		if !strings.HasPrefix(original, prefix) {
			continue
		}
		rest := original[len(prefix):]
		if len(rest) > 0 && isSeparator(rest[0]) {
			rest = rest[1:]
		}
		return rest
	}
	return original
}
