// Package queryplanner translates the HTTP browse/search command
// vocabulary into composite bleve queries against the catalog index and
// renders matches into the JSON Node shape the frontend expects.
package queryplanner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Command is the q= parameter's fixed vocabulary.
type Command string

const (
	CmdReady      Command = "ready"
	CmdDetails    Command = "details"
	CmdIndex      Command = "index"
	CmdSubfolders Command = "subfolders"
	CmdSearch     Command = "search"
)

// Request is the decoded form of the /files query string.
type Request struct {
	Command    Command
	Adapter    string
	Path       string
	Filter     string
	Extension  string
	Limit      *int
	DebugQuery bool
}

// Response is the success shape for every command.
type Response struct {
	Adapter    string `json:"adapter"`
	Storages   []string `json:"storages"`
	Files      []Node   `json:"files"`
	DebugQuery string   `json:"debug_query,omitempty"`
}

// ErrorResponse is returned for query-parse or search-execution failures.
type ErrorResponse struct {
	Storages []string `json:"storages"`
	Error    string   `json:"error"`
}

// BundleInfo is the rendered bundle locator for a FILE node.
type BundleInfo struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

// SpriteInfo is the rendered geometry for a SPRITE node.
type SpriteInfo struct {
	Sheet  string `json:"sheet"`
	Source string `json:"source"`
	X      uint64 `json:"x"`
	Y      uint64 `json:"y"`
	W      uint64 `json:"w"`
	H      uint64 `json:"h"`
}

// Node is the JSON projection of one matched document.
type Node struct {
	Path         string      `json:"path"`
	Dirname      string      `json:"dirname"`
	Basename     string      `json:"basename"`
	Type         string      `json:"type"`
	Extension    string      `json:"extension,omitempty"`
	MimeType     string      `json:"mime_type,omitempty"`
	FileSize     *uint64     `json:"file_size,omitempty"`
	BundleOffset *uint64     `json:"bundle_offset,omitempty"`
	Bundle       *BundleInfo `json:"bundle,omitempty"`
	Sprite       *SpriteInfo `json:"sprite,omitempty"`
}

// MimeResolver looks up a MIME type by file extension (without the dot).
// The catalog service doesn't own the dictionary; httpapi wires in a
// concrete resolver.
type MimeResolver interface {
	Lookup(extension string) (mime string, ok bool)
}

// plainTextExtensions is the fixed allow-list that falls back to
// text/plain when the MIME dictionary has no entry.
var plainTextExtensions = map[string]bool{
	"txt": true, "csv": true, "json": true, "xml": true,
	"ini": true, "cfg": true, "log": true, "md": true, "hlsl": true,
}

var storedFields = []string{
	"name", "parent", "type",
	"bundle", "bundle_size", "offset", "size",
	"sprite_sheet", "sprite_txt", "sprite_x", "sprite_y", "sprite_w", "sprite_h",
}

// ErrNoLiveVersions is returned when Plan is asked to run against an empty
// live-version list.
var ErrNoLiveVersions = fmt.Errorf("queryplanner: no live versions")

// SelectAdapter implements the adapter-fallback rule: an explicit adapter
// that matches a live version wins, otherwise the first live version is
// used. Returns ErrNoLiveVersions if live is empty.
func SelectAdapter(live []string, requested string) (string, error) {
	if len(live) == 0 {
		return "", ErrNoLiveVersions
	}
	for _, v := range live {
		if v == requested {
			return v, nil
		}
	}
	return live[0], nil
}

// Plan executes req against idx and returns the rendered response. live is
// the current live-version snapshot (already cloned by the caller).
func Plan(idx bleve.Index, live []string, resolver MimeResolver, req Request) (*Response, *ErrorResponse, error) {
	if req.Command == CmdReady {
		adapter, err := SelectAdapter(live, req.Adapter)
		if err != nil {
			return nil, nil, err
		}
		return &Response{Adapter: adapter, Storages: live, Files: []Node{}}, nil, nil
	}

	adapter, err := SelectAdapter(live, req.Adapter)
	if err != nil {
		return nil, nil, err
	}

	q, err := buildQuery(req, adapter)
	if err != nil {
		return nil, &ErrorResponse{Storages: live, Error: err.Error()}, nil
	}

	size := -1
	if req.Command == CmdSearch && req.Limit == nil {
		defaultLimit := 50
		req.Limit = &defaultLimit
	}
	if req.Limit != nil && *req.Limit > 0 {
		size = *req.Limit
	}

	sreq := searchRequest(q, size, idx)

	res, err := idx.Search(sreq)
	if err != nil {
		return nil, &ErrorResponse{Storages: live, Error: err.Error()}, nil
	}

	nodes := make([]Node, 0, len(res.Hits))
	for _, hit := range res.Hits {
		nodes = append(nodes, renderNode(hit.Fields, resolver))
	}

	if size < 0 {
		sortNodesStable(nodes)
	}

	resp := &Response{Adapter: adapter, Storages: live, Files: nodes}
	if req.DebugQuery {
		if b, err := json.Marshal(q); err == nil {
			resp.DebugQuery = string(b)
		}
	}
	return resp, nil, nil
}

func searchRequest(q query.Query, size int, idx bleve.Index) *bleve.SearchRequest {
	if size < 0 {
		if n, err := idx.DocCount(); err == nil && n > 0 {
			size = int(n)
		} else {
			size = 1
		}
	}
	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.Fields = storedFields
	return req
}

func buildQuery(req Request, adapter string) (query.Query, error) {
	version := termQuery("version", adapter)

	switch req.Command {
	case CmdIndex, CmdSubfolders:
		parent := strings.TrimPrefix(req.Path, "/")
		clauses := []query.Query{version, termQuery("parent", parent)}
		if req.Extension != "" {
			clauses = append(clauses, termQuery("extension", req.Extension))
		}
		if req.Command == CmdSubfolders {
			clauses = append(clauses, termQuery("type", "dir"))
		}
		return conjunction(clauses), nil

	case CmdDetails:
		prefix, leaf := splitPath(strings.TrimPrefix(req.Path, "/"))
		return conjunction([]query.Query{
			version,
			termQuery("parent", prefix),
			termQuery("name", leaf),
		}), nil

	case CmdSearch:
		clauses := []query.Query{version}
		path := strings.TrimPrefix(req.Path, "/")
		if path != "" {
			clauses = append(clauses, prefixQuery("parent", path))
		}
		if req.Filter != "" {
			clauses = append(clauses, fuzzyQuery("path", req.Filter))
		}
		return conjunction(clauses), nil

	default:
		return nil, fmt.Errorf("unknown command %q", req.Command)
	}
}

func termQuery(field, value string) query.Query {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}

func prefixQuery(field, value string) query.Query {
	q := bleve.NewPrefixQuery(value)
	q.SetField(field)
	return q
}

// fuzzyQuery is the default text parser: it matches terms within edit
// distance 2 of value, or terms that start with value. A term whose leading
// part is only within edit distance of value, rather than equal to it, is
// not matched.
func fuzzyQuery(field, value string) query.Query {
	q := bleve.NewFuzzyQuery(value)
	q.SetField(field)
	q.Fuzziness = 2
	return bleve.NewDisjunctionQuery(q, prefixQuery(field, value))
}

func conjunction(clauses []query.Query) query.Query {
	return bleve.NewConjunctionQuery(clauses...)
}

func splitPath(path string) (parent, name string) {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return "", path
}

func renderNode(fields map[string]interface{}, resolver MimeResolver) Node {
	name, _ := fields["name"].(string)
	parent, _ := fields["parent"].(string)
	typ, _ := fields["type"].(string)

	path := name
	if parent != "" {
		path = parent + "/" + name
	}

	n := Node{
		Path:     path,
		Dirname:  parent,
		Basename: name,
		Type:     typ,
	}

	if typ != "dir" {
		if ext := extensionOf(name); ext != "" {
			n.Extension = ext
			if resolver != nil {
				if mime, ok := resolver.Lookup(ext); ok {
					n.MimeType = mime
				}
			}
			if n.MimeType == "" && plainTextExtensions[ext] {
				n.MimeType = "text/plain"
			}
		}
	}

	if typ == "file" {
		size := uint64Field(fields, "size")
		offset := uint64Field(fields, "offset")
		n.FileSize = &size
		n.BundleOffset = &offset
		n.Bundle = &BundleInfo{
			Name: stringField(fields, "bundle"),
			Size: uint64Field(fields, "bundle_size"),
		}
	}

	if typ == "sprite" {
		n.Sprite = &SpriteInfo{
			Sheet:  stringField(fields, "sprite_sheet"),
			Source: stringField(fields, "sprite_txt"),
			X:      uint64Field(fields, "sprite_x"),
			Y:      uint64Field(fields, "sprite_y"),
			W:      uint64Field(fields, "sprite_w"),
			H:      uint64Field(fields, "sprite_h"),
		}
	}

	return n
}

func extensionOf(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}
	return ""
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

func uint64Field(fields map[string]interface{}, key string) uint64 {
	switch v := fields[key].(type) {
	case float64:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// sortNodesStable implements the unlimited-result ordering: (type, path,
// basename) ascending with dir sorting before file and sprite, which rank
// equal to each other.
func sortNodesStable(nodes []Node) {
	rank := func(t string) int {
		if t == "dir" {
			return 0
		}
		return 1
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		ri, rj := rank(nodes[i].Type), rank(nodes[j].Type)
		if ri != rj {
			return ri < rj
		}
		if nodes[i].Path != nodes[j].Path {
			return nodes[i].Path < nodes[j].Path
		}
		return nodes[i].Basename < nodes[j].Basename
	})
}
