package server

import "strings"

// SecureFilename reduces an uploaded filename to a safe base name: any
// directory part is dropped, characters outside [A-Za-z0-9._-] become '_',
// and leading or trailing dots and underscores are trimmed. The result may
// be empty.
func SecureFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "._")
}
