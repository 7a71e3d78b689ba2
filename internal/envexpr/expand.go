// Package envexpr expands ${env.KEY} references in configuration text.
package envexpr

import (
	"strings"
	"unicode"
)

const prefix = "${env."

// Expand replaces every ${env.KEY} in value with lookup(KEY). KEY may hold
// letters, digits and underscores only; a reference with any other key or
// without a closing brace is copied verbatim.
func Expand(value string, lookup func(key string) string) string {
	var b strings.Builder
	for {
		start := strings.Index(value, prefix)
		if start < 0 {
			b.WriteString(value)
			return b.String()
		}
		b.WriteString(value[:start])
		rest := value[start+len(prefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(value[start:])
			return b.String()
		}
		key := rest[:end]
		if !validKey(key) {
			// rescan after the prefix so nested references still expand
			b.WriteString(prefix)
			value = rest
			continue
		}
		b.WriteString(lookup(key))
		value = rest[end+1:]
	}
}

func validKey(key string) bool {
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
