// Package searchindex holds the full-text index over catalog.Document
// entries: its field mapping, a long-lived index handle used for both
// writes and reads, and the batch write path. Queries against it are built
// by pkg/queryplanner.
package searchindex

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

const documentTypeName = "catalog_entry"

// BuildMapping constructs the field mapping described by the schema table:
// path is tokenized and never stored; name/parent/type/version/bundle/
// sprite_sheet/sprite_txt are exact-match keyword fields and stored; parent
// additionally carries doc values so it can back the fast parent==X term
// query used by the index/subfolders/details commands; extension is indexed
// but never stored; the numeric locator and geometry fields are stored.
func BuildMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name

	doc := bleve.NewDocumentMapping()

	path := bleve.NewTextFieldMapping()
	path.Store = false
	path.IncludeInAll = false
	path.Analyzer = standard.Name
	doc.AddFieldMappingsAt("path", path)

	name := keywordField(true, false)
	doc.AddFieldMappingsAt("name", name)

	parent := keywordField(true, true)
	doc.AddFieldMappingsAt("parent", parent)

	typeField := keywordField(true, false)
	doc.AddFieldMappingsAt("type", typeField)

	version := keywordField(true, false)
	doc.AddFieldMappingsAt("version", version)

	extension := keywordField(false, false)
	doc.AddFieldMappingsAt("extension", extension)

	for _, fieldName := range []string{"bundle", "sprite_sheet", "sprite_txt"} {
		doc.AddFieldMappingsAt(fieldName, keywordField(true, false))
	}

	for _, fieldName := range []string{"offset", "size", "bundle_size", "sprite_x", "sprite_y", "sprite_w", "sprite_h"} {
		num := bleve.NewNumericFieldMapping()
		num.Store = true
		doc.AddFieldMappingsAt(fieldName, num)
	}

	im.AddDocumentMapping(documentTypeName, doc)
	im.DefaultMapping = doc
	im.DefaultType = documentTypeName

	return im
}

func keywordField(store, docValues bool) *mapping.FieldMapping {
	f := bleve.NewTextFieldMapping()
	f.Analyzer = keyword.Name
	f.Store = store
	f.IncludeInAll = false
	f.DocValues = docValues
	return f
}
