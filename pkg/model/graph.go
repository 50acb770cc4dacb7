package model

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Graph is the merged node/link graph.
// It serves as the common data model for the merger, the analyzers and the visualization layer.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make([]Node, 0),
		Links: make([]Link, 0),
	}
}

// AddNode appends a node to the graph.
func (g *Graph) AddNode(node Node) {
	g.Nodes = append(g.Nodes, node)
}

// AddLink appends a link to the graph.
func (g *Graph) AddLink(link Link) {
	g.Links = append(g.Links, link)
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodesByName returns every node whose display name equals name.
func (g *Graph) NodesByName(name string) []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes: make([]Node, 0, len(g.Nodes)),
		Links: make([]Link, 0, len(g.Links)),
	}
	for _, n := range g.Nodes {
		out.Nodes = append(out.Nodes, n.Clone())
	}
	for _, l := range g.Links {
		out.Links = append(out.Links, l.Clone())
	}
	return out
}

// Fragment is one independently authored graph document contributing to a merge.
// A nil Nodes or Links slice means the sequence was missing from the source document.
type Fragment struct {
	Name  string `json:"-"` // Where the fragment came from, for diagnostics only
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// ErrMalformedFragment is returned by Validate when a fragment lacks its node or link sequence.
var ErrMalformedFragment = errors.New("malformed fragment")

// Validate checks the minimal {nodes, links} shape.
func (f *Fragment) Validate() error {
	if f == nil {
		return errors.Wrap(ErrMalformedFragment, "fragment is nil")
	}
	if f.Nodes == nil {
		return errors.WithHint(errors.Wrap(ErrMalformedFragment, "missing nodes sequence"),
			`a dataset must contain a "nodes" array, even if empty`)
	}
	if f.Links == nil {
		return errors.WithHint(errors.Wrap(ErrMalformedFragment, "missing links sequence"),
			`a dataset must contain a "links" array, even if empty`)
	}
	return nil
}

// UnmarshalJSON decodes a fragment. A nodes/links member that is absent, null or not an
// array is left nil so that Validate reports the fragment as malformed instead of failing
// the decode.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "dataset must be an object")
	}

	*f = Fragment{Name: f.Name}
	if msg, ok := raw["nodes"]; ok && isArray(msg) {
		nodes := make([]Node, 0)
		if err := json.Unmarshal(msg, &nodes); err != nil {
			return errors.Wrap(err, "decoding nodes")
		}
		f.Nodes = nodes
	}
	if msg, ok := raw["links"]; ok && isArray(msg) {
		links := make([]Link, 0)
		if err := json.Unmarshal(msg, &links); err != nil {
			return errors.Wrap(err, "decoding links")
		}
		f.Links = links
	}
	return nil
}

func isArray(msg json.RawMessage) bool {
	trimmed := bytes.TrimSpace(msg)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Group maps a tag to rendering attributes. Nil fields are undefined and fall through
// to the next matching group.
type Group struct {
	Tag    string   `json:"tag"`
	Colour *string  `json:"colour,omitempty"`
	Radius *float64 `json:"radius,omitempty"`
}
