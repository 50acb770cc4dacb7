// Package components derives connectivity groupings from a node/link graph.
//
// Links are treated as undirected edges. Components are discovered by breadth-first
// traversal from each unvisited node in input order; members of a component are reported
// in input order as well, so results are stable across runs. Callers should still not
// attach meaning to the order of the component list.
package components

import (
	"sort"

	"github.com/cockroachdb/errors"
	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/umsu/umsugraph/pkg/graph"
	"github.com/umsu/umsugraph/pkg/logging"
	"github.com/umsu/umsugraph/pkg/model"
)

// ErrNotFound is returned when no component holds the requested node id.
var ErrNotFound = errors.New("component not found")

// Connected partitions the nodes into undirected connected components. Every node
// appears in exactly one component; nodes without links form singletons.
func Connected(nodes []model.Node, links []model.Link) []model.Component {
	lg := graph.Build(nodes, links)

	var current model.Component
	bfs := traverse.BreadthFirst{
		Visit: func(n gonum.Node) {
			current = append(current, lg.Key(n.ID()))
		},
	}

	comps := make([]model.Component, 0)
	g := lg.Graph()
	for _, node := range nodes {
		gid, ok := lg.GraphID(node.ID)
		if !ok {
			continue
		}
		start := g.Node(gid)
		if bfs.Visited(start) {
			continue
		}

		current = model.Component{}
		bfs.Walk(g, start, nil)
		sort.Slice(current, func(i, j int) bool {
			return lg.Order(current[i]) < lg.Order(current[j])
		})
		comps = append(comps, current)
	}
	logging.Trace("connected components", "nodes", lg.Len(), "components", len(comps))
	return comps
}

// Containing returns the component holding id.
func Containing(id string, comps []model.Component) (model.Component, error) {
	for _, comp := range comps {
		if comp.Contains(id) {
			return comp, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "node %q", id)
}

// ForSeeds returns the subgraph induced by every component that holds a node named in
// seedNames. Nodes and links keep their order from g and are deep copies.
func ForSeeds(g *model.Graph, seedNames []string) *model.Graph {
	comps := Connected(g.Nodes, g.Links)
	selected := make(map[string]bool)
	for _, name := range seedNames {
		for _, node := range g.NodesByName(name) {
			if selected[node.ID] {
				continue
			}
			comp, err := Containing(node.ID, comps)
			if err != nil {
				// Components were built from g.Nodes, so this is a broken invariant
				logging.Error("seed node missing from components", "id", node.ID, "error", err)
				continue
			}
			for _, id := range comp {
				selected[id] = true
			}
		}
	}

	return Induced(g, selected)
}

// Induced returns the nodes in ids plus every link whose endpoints are both in ids.
func Induced(g *model.Graph, ids map[string]bool) *model.Graph {
	out := model.NewGraph()
	for _, node := range g.Nodes {
		if ids[node.ID] {
			out.AddNode(node.Clone())
		}
	}
	for _, link := range g.Links {
		if ids[link.Source] && ids[link.Target] {
			out.AddLink(link.Clone())
		}
	}
	return out
}
