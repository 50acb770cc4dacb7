package graph

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/umsu/umsugraph/pkg/model"
)

// LinkGraph indexes a node/link graph as an undirected gonum graph keyed by node id.
type LinkGraph struct {
	graph *simple.UndirectedGraph
	ids   map[string]int64 // Map from node id to graph ID
	keys  []string         // Map from graph ID back to node id; graph IDs follow insertion order
}

// NewLinkGraph creates a new empty link graph
func NewLinkGraph() *LinkGraph {
	return &LinkGraph{
		graph: simple.NewUndirectedGraph(),
		ids:   make(map[string]int64),
	}
}

// Build indexes nodes and links. Links with an endpoint outside the node set are ignored
// because they cannot join two members of the graph.
func Build(nodes []model.Node, links []model.Link) *LinkGraph {
	lg := NewLinkGraph()
	for _, n := range nodes {
		lg.AddNode(n.ID)
	}
	for _, l := range links {
		lg.AddLink(l.Source, l.Target)
	}
	return lg
}

// AddNode adds a node id to the graph. Adding a known id is a no-op.
func (lg *LinkGraph) AddNode(id string) {
	if _, exists := lg.ids[id]; exists {
		return
	}

	gid := int64(len(lg.keys))
	lg.ids[id] = gid
	lg.keys = append(lg.keys, id)
	lg.graph.AddNode(simple.Node(gid))
}

// AddLink connects two known node ids. It reports whether an edge was recorded;
// unknown endpoints and self-loops are skipped.
func (lg *LinkGraph) AddLink(source, target string) bool {
	sourceID, ok := lg.ids[source]
	if !ok {
		return false
	}
	targetID, ok := lg.ids[target]
	if !ok || sourceID == targetID {
		return false
	}

	if !lg.graph.HasEdgeBetween(sourceID, targetID) {
		lg.graph.SetEdge(lg.graph.NewEdge(simple.Node(sourceID), simple.Node(targetID)))
	}
	return true
}

// Has reports whether id is a node of the graph
func (lg *LinkGraph) Has(id string) bool {
	_, ok := lg.ids[id]
	return ok
}

// GraphID returns the gonum ID for a node id
func (lg *LinkGraph) GraphID(id string) (int64, bool) {
	gid, ok := lg.ids[id]
	return gid, ok
}

// Key returns the node id for a gonum ID
func (lg *LinkGraph) Key(gid int64) string {
	if gid < 0 || int(gid) >= len(lg.keys) {
		return ""
	}
	return lg.keys[gid]
}

// Order returns the insertion position of a node id, or -1
func (lg *LinkGraph) Order(id string) int {
	if gid, ok := lg.ids[id]; ok {
		return int(gid)
	}
	return -1
}

// Len returns the number of nodes
func (lg *LinkGraph) Len() int {
	return len(lg.keys)
}

// Graph returns the underlying undirected graph
func (lg *LinkGraph) Graph() *simple.UndirectedGraph {
	return lg.graph
}

// Neighbours returns the ids adjacent to id, in insertion order
func (lg *LinkGraph) Neighbours(id string) []string {
	gid, ok := lg.ids[id]
	if !ok {
		return nil
	}

	seen := make([]bool, len(lg.keys))
	iter := lg.graph.From(gid)
	for iter.Next() {
		seen[iter.Node().ID()] = true
	}

	var out []string
	for i, key := range lg.keys {
		if seen[i] {
			out = append(out, key)
		}
	}
	return out
}
