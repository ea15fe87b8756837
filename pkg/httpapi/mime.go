package httpapi

import (
	"mime"
	"strings"
)

// StdlibMimeResolver backs queryplanner.MimeResolver with the standard
// library's extension dictionary. The dictionary itself is treated as an
// external collaborator the catalog's own logic never special-cases beyond
// the plain-text allow-list fallback.
type StdlibMimeResolver struct{}

func (StdlibMimeResolver) Lookup(extension string) (string, bool) {
	m := mime.TypeByExtension("." + extension)
	if m == "" {
		return "", false
	}
	if idx := strings.IndexByte(m, ';'); idx >= 0 {
		m = m[:idx]
	}
	return strings.TrimSpace(m), true
}
