package web

import (
	"github.com/umsu/umsugraph/pkg/components"
	"github.com/umsu/umsugraph/pkg/layout"
	"github.com/umsu/umsugraph/pkg/model"
)

// Snapshot is everything the API serves about one merge run. It is immutable once built.
type Snapshot struct {
	Graph      *model.Graph
	Components []model.Component
	Masses     []float64
	Strengths  map[string]float64
	Table      *layout.Table
	Forces     layout.Forces
	Warnings   []error
	Datasets   []string

	componentOf map[string]int
}

// NewSnapshot derives components, masses and strengths for a merged graph.
func NewSnapshot(g *model.Graph, table *layout.Table, forces layout.Forces, warnings []error, datasets []string) *Snapshot {
	comps := components.Connected(g.Nodes, g.Links)
	s := &Snapshot{
		Graph:       g,
		Components:  comps,
		Masses:      layout.Masses(g, comps, table),
		Strengths:   forces.Strength.StrengthByNode(g, comps, table),
		Table:       table,
		Forces:      forces,
		Warnings:    warnings,
		Datasets:    datasets,
		componentOf: make(map[string]int, len(g.Nodes)),
	}
	for i, comp := range comps {
		for _, id := range comp {
			s.componentOf[id] = i
		}
	}
	return s
}

// WithTable re-derives the styling of a snapshot under a new group table and forces,
// keeping the merged graph and its components.
func (s *Snapshot) WithTable(table *layout.Table, forces layout.Forces) *Snapshot {
	dup := *s
	dup.Table = table
	dup.Forces = forces
	dup.Masses = layout.Masses(s.Graph, s.Components, table)
	dup.Strengths = forces.Strength.StrengthByNode(s.Graph, s.Components, table)
	return &dup
}

// ViewNode is a node annotated with everything the renderer needs.
type ViewNode struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Tags      []string       `json:"tags"`
	Attrs     map[string]any `json:"attrs,omitempty"`
	Colour    string         `json:"colour"`
	Radius    float64        `json:"radius"`
	Size      float64        `json:"size"` // Radius in pixels
	Strength  float64        `json:"strength"`
	Component int            `json:"component"`
}

// GraphView is the renderable form of a graph.
type GraphView struct {
	Nodes  []ViewNode    `json:"nodes"`
	Links  []model.Link  `json:"links"`
	Forces layout.Forces `json:"forces"`
}

// ComponentView summarises one component.
type ComponentView struct {
	Index   int      `json:"index"`
	Members []string `json:"members"`
	Mass    float64  `json:"mass"`
}

// NodeDetail is a node together with its relations.
type NodeDetail struct {
	Node      ViewNode                   `json:"node"`
	Component []string                   `json:"component"`
	Relations []components.RelationGroup `json:"relations"`
}

func (s *Snapshot) viewNode(n model.Node) ViewNode {
	style := s.Table.Style(n.Tags)
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return ViewNode{
		ID:        n.ID,
		Name:      n.Name,
		Tags:      tags,
		Attrs:     n.Attrs,
		Colour:    style.Colour,
		Radius:    style.Radius,
		Size:      style.Radius * s.Forces.NodeRadius,
		Strength:  s.Strengths[n.ID],
		Component: s.componentOf[n.ID],
	}
}

// View renders g, which must be the snapshot graph or a subgraph of it.
func (s *Snapshot) View(g *model.Graph) *GraphView {
	view := &GraphView{
		Nodes:  make([]ViewNode, 0, len(g.Nodes)),
		Links:  make([]model.Link, 0, len(g.Links)),
		Forces: s.Forces,
	}
	for _, n := range g.Nodes {
		view.Nodes = append(view.Nodes, s.viewNode(n))
	}
	view.Links = append(view.Links, g.Links...)
	return view
}

// ComponentViews lists every component with its mass.
func (s *Snapshot) ComponentViews() []ComponentView {
	out := make([]ComponentView, 0, len(s.Components))
	for i, comp := range s.Components {
		out = append(out, ComponentView{Index: i, Members: comp, Mass: s.Masses[i]})
	}
	return out
}

// Detail describes one node, or reports components.ErrNotFound.
func (s *Snapshot) Detail(id string) (*NodeDetail, error) {
	comp, err := components.Containing(id, s.Components)
	if err != nil {
		return nil, err
	}
	node, _ := s.Graph.Node(id)
	return &NodeDetail{
		Node:      s.viewNode(node),
		Component: comp,
		Relations: components.Relations(s.Graph, id),
	}, nil
}

// WarningMessages returns the warnings as strings.
func (s *Snapshot) WarningMessages() []string {
	out := make([]string, 0, len(s.Warnings))
	for _, w := range s.Warnings {
		out = append(out, w.Error())
	}
	return out
}
