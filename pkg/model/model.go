package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// NegationMarker is the prefix that turns an id, link name or tag into a deletion directive.
const NegationMarker = "-"

// Node represents a vertex of a dataset fragment or of the merged graph.
// Fields other than id, name and tags are kept verbatim in Attrs.
type Node struct {
	ID    string         `json:"id"`
	Name  string         `json:"name,omitempty"`
	Tags  []string       `json:"tags"`
	Attrs map[string]any `json:"-"`
}

// Link represents a named relation between two nodes. Links are undirected for identity purposes.
type Link struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Name   string         `json:"name,omitempty"`
	Attrs  map[string]any `json:"-"`
}

// Component is a maximal set of node ids connected by links.
type Component []string

// Contains reports whether id is a member of the component
func (c Component) Contains(id string) bool {
	for _, member := range c {
		if member == id {
			return true
		}
	}
	return false
}

// IsNegated reports whether s carries the negation marker
func IsNegated(s string) bool {
	return strings.HasPrefix(s, NegationMarker)
}

// StripNegation removes a single leading negation marker
func StripNegation(s string) string {
	return strings.TrimPrefix(s, NegationMarker)
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := Node{ID: n.ID, Name: n.Name}
	if n.Tags != nil {
		out.Tags = append(make([]string, 0, len(n.Tags)), n.Tags...)
	}
	out.Attrs = CloneAttrs(n.Attrs)
	return out
}

// HasTag reports whether the node carries tag
func (n Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the link.
func (l Link) Clone() Link {
	return Link{
		Source: l.Source,
		Target: l.Target,
		Name:   l.Name,
		Attrs:  CloneAttrs(l.Attrs),
	}
}

// Touches reports whether either endpoint of the link is id
func (l Link) Touches(id string) bool {
	return l.Source == id || l.Target == id
}

// MarshalJSON flattens Attrs next to the known fields.
func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Attrs)+3)
	for k, v := range n.Attrs {
		out[k] = v
	}
	out["id"] = n.ID
	if n.Name != "" {
		out["name"] = n.Name
	}
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	out["tags"] = tags
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat node object. Unknown keys end up in Attrs.
// A null entry leaves the zero node, which the merger reports for its missing id.
func (n *Node) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*n = Node{}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "node must be an object")
	}

	id, err := scalarString(raw["id"])
	if err != nil {
		return errors.Wrap(err, "node id")
	}
	*n = Node{ID: id}
	if name, err := scalarString(raw["name"]); err == nil {
		n.Name = name
		delete(raw, "name")
	}
	n.Tags = stringSlice(raw["tags"])

	delete(raw, "id")
	delete(raw, "tags")
	if len(raw) > 0 {
		n.Attrs = raw
	}
	return nil
}

// MarshalJSON flattens Attrs next to the known fields.
func (l Link) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Attrs)+3)
	for k, v := range l.Attrs {
		out[k] = v
	}
	out["source"] = l.Source
	out["target"] = l.Target
	if l.Name != "" {
		out["name"] = l.Name
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat link object. Unknown keys end up in Attrs.
// A null entry leaves the zero link, which the merger reports for its missing endpoints.
func (l *Link) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*l = Link{}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "link must be an object")
	}

	source, err := scalarString(raw["source"])
	if err != nil {
		return errors.Wrap(err, "link source")
	}
	target, err := scalarString(raw["target"])
	if err != nil {
		return errors.Wrap(err, "link target")
	}
	*l = Link{Source: source, Target: target}
	if name, err := scalarString(raw["name"]); err == nil {
		l.Name = name
		delete(raw, "name")
	}

	delete(raw, "source")
	delete(raw, "target")
	if len(raw) > 0 {
		l.Attrs = raw
	}
	return nil
}

// scalarString converts a decoded JSON scalar to its string key form.
// Numbers are accepted since ids are commonly written unquoted.
func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", errors.Newf("expected a scalar, got %T", v)
	}
}

func isNull(data []byte) bool {
	return string(bytes.TrimSpace(data)) == "null"
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
