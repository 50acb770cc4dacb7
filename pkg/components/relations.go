package components

import (
	"strings"

	"github.com/umsu/umsugraph/pkg/graph"
	"github.com/umsu/umsugraph/pkg/model"
)

// Relation is one link seen from a focused node.
type Relation struct {
	Link model.Link `json:"link"`
	Peer model.Node `json:"peer"` // The node at the other end
}

// RelationGroup collects the relations of a node sharing a link name.
type RelationGroup struct {
	Name      string     `json:"name"`
	Relations []Relation `json:"relations"`
}

// Relations groups the links touching id by link name, in order of first appearance.
// Links whose other endpoint is not a node of g are left out.
func Relations(g *model.Graph, id string) []RelationGroup {
	lg := graph.Build(g.Nodes, g.Links)
	if !lg.Has(id) {
		return nil
	}

	// Self-loops are relations too, though they add no edge to the index
	peers := map[string]bool{id: true}
	for _, other := range lg.Neighbours(id) {
		peers[other] = true
	}
	byID := make(map[string]model.Node, len(peers))
	for _, n := range g.Nodes {
		if peers[n.ID] {
			if _, dup := byID[n.ID]; !dup {
				byID[n.ID] = n
			}
		}
	}

	var groups []RelationGroup
	index := make(map[string]int)
	for _, link := range g.Links {
		if !link.Touches(id) {
			continue
		}
		other := link.Target
		if link.Target == id {
			other = link.Source
		}
		peer, ok := byID[other]
		if !ok {
			continue
		}

		pos, seen := index[link.Name]
		if !seen {
			pos = len(groups)
			index[link.Name] = pos
			groups = append(groups, RelationGroup{Name: link.Name})
		}
		groups[pos].Relations = append(groups[pos].Relations, Relation{Link: link.Clone(), Peer: peer.Clone()})
	}
	return groups
}

// Search returns the nodes whose name contains query, ignoring case. An empty query
// matches nothing.
func Search(g *model.Graph, query string) []model.Node {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var out []model.Node
	for _, n := range g.Nodes {
		if n.Name != "" && strings.Contains(strings.ToLower(n.Name), query) {
			out = append(out, n.Clone())
		}
	}
	return out
}
