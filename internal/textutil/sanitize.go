package textutil

import "strings"

// SanitizeFileName reduces a worker-reported file name to a single path
// element that can be created inside a copy directory. Path separators become
// underscores and control characters are dropped. Names made only of dots
// return "".
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.TrimSpace(name)
	if strings.Trim(name, ".") == "" {
		return ""
	}
	return name
}
