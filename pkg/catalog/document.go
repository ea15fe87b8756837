// Package catalog implements the ingester: given a version URL it fetches
// and decodes that version's index bundle (pkg/bundle, pkg/pathtable,
// pkg/hash) and materializes File, Directory and Sprite documents.
package catalog

import "strings"

// EntryType is the catalog's discriminator field.
type EntryType string

const (
	TypeFile   EntryType = "file"
	TypeDir    EntryType = "dir"
	TypeSprite EntryType = "sprite"
)

// Document is the generic shape every indexed entry takes. Not every field
// applies to every Type — see the Type-specific comments below. Field names
// match the bleve document keys used by pkg/searchindex verbatim.
type Document struct {
	Version   string    `json:"version"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Parent    string    `json:"parent"`
	Type      EntryType `json:"type"`
	Extension string    `json:"extension,omitempty"`

	// File-only locator fields.
	Bundle     string `json:"bundle,omitempty"`
	BundleSize uint64 `json:"bundle_size,omitempty"`
	Offset     uint64 `json:"offset,omitempty"`
	Size       uint64 `json:"size,omitempty"`

	// Sprite-only fields.
	SpriteSheet string `json:"sprite_sheet,omitempty"`
	SpriteTxt   string `json:"sprite_txt,omitempty"`
	SpriteX     uint64 `json:"sprite_x,omitempty"`
	SpriteY     uint64 `json:"sprite_y,omitempty"`
	SpriteW     uint64 `json:"sprite_w,omitempty"`
	SpriteH     uint64 `json:"sprite_h,omitempty"`
}

// splitPath splits a full path into (parent, name), matching
// rsplit_once('/') semantics: no slash means an empty parent.
func splitPath(path string) (parent, name string) {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return "", path
}

// extensionOf returns the substring after the last '.' in name, or "" if
// name has none.
func extensionOf(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}
	return ""
}

// prefixesOf yields every proper prefix directory of path, e.g. "a/b/c.x"
// yields "a" and "a/b".
func prefixesOf(path string) []string {
	var out []string
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			out = append(out, path[:i])
		}
	}
	return out
}
