// Package merge folds an ordered list of dataset fragments into one graph.
//
// Later fragments take precedence over earlier ones. The fold walks the list from the
// last (highest priority) fragment to the first, so a lower-priority fragment only fills
// fields that higher-priority fragments left empty. Tags are unioned instead of
// overridden. Inside one fragment a repeated node id or link key is folded first, the
// later entry taking precedence.
//
// A leading "-" on a node id, link name or tag is a deletion directive. A deletion removes
// the positive entity no matter which fragment defined it, and it stays in force for the
// rest of the merge: a negated node also takes every link touching it with it.
package merge

import (
	"github.com/umsu/umsugraph/pkg/logging"
	"github.com/umsu/umsugraph/pkg/model"
)

// Result is the outcome of a merge: the merged graph plus the non-fatal problems met on the way.
type Result struct {
	Graph    *model.Graph
	Warnings []error
}

// linkKey identifies a link independently of its direction
type linkKey struct {
	a, b string
	name string
}

func newLinkKey(source, target, name string) linkKey {
	if target < source {
		source, target = target, source
	}
	return linkKey{a: source, b: target, name: name}
}

type nodeEntry struct {
	node    model.Node
	negated map[string]bool // tags removed by some fragment
}

// merger holds the accumulators of a single Merge call
type merger struct {
	nodes        map[string]*nodeEntry
	nodeOrder    []string
	deletedNodes map[string]bool

	links        map[linkKey]*model.Link
	linkOrder    []linkKey
	deletedLinks map[linkKey]bool

	warnings []error
}

// Merge combines fragments into one graph. It never fails: malformed fragments and
// invalid entries are skipped and reported in Result.Warnings.
func Merge(fragments []model.Fragment) *Result {
	m := &merger{
		nodes:        make(map[string]*nodeEntry),
		deletedNodes: make(map[string]bool),
		links:        make(map[linkKey]*model.Link),
		deletedLinks: make(map[linkKey]bool),
	}

	for i := len(fragments) - 1; i >= 0; i-- {
		fragment := &fragments[i]
		if err := fragment.Validate(); err != nil {
			m.warn(&MalformedFragmentError{Index: i, Name: fragment.Name, Err: err})
			continue
		}

		for _, node := range squashNodes(fragment.Nodes) {
			m.mergeNode(i, node)
		}
		for _, link := range squashLinks(fragment.Links) {
			m.mergeLink(i, link)
		}
	}

	g := m.graph()
	logging.Debug("merged datasets",
		"fragments", len(fragments),
		"nodes", len(g.Nodes),
		"links", len(g.Links),
		"warnings", len(m.warnings))

	return &Result{Graph: g, Warnings: m.warnings}
}

func (m *merger) warn(err error) {
	logging.Warn("skipping dataset entry", "error", err)
	m.warnings = append(m.warnings, err)
}

func (m *merger) mergeNode(fragment int, node model.Node) {
	if model.IsNegated(node.ID) {
		posID := model.StripNegation(node.ID)
		if posID == "" {
			m.warn(&InvalidEntryError{Fragment: fragment, Kind: "node", Value: node.ID, Reason: "negation of an empty id"})
			return
		}
		m.deleteNode(posID)
		return
	}
	if node.ID == "" {
		m.warn(&InvalidEntryError{Fragment: fragment, Kind: "node", Value: node.Name, Reason: "missing id"})
		return
	}
	if m.deletedNodes[node.ID] {
		return
	}

	entry, exists := m.nodes[node.ID]
	if !exists {
		entry = &nodeEntry{
			node:    model.Node{ID: node.ID, Name: node.Name, Tags: []string{}, Attrs: model.CloneAttrs(node.Attrs)},
			negated: make(map[string]bool),
		}
		m.nodes[node.ID] = entry
		m.nodeOrder = append(m.nodeOrder, node.ID)
	} else {
		fillEmpty(&entry.node.Name, node.Name)
		entry.node.Attrs = fillAttrs(entry.node.Attrs, node.Attrs)
	}
	entry.addTags(node.Tags)
}

// addTags unions incoming tags into the entry. Negated tags are remembered rather than
// stored so they can remove their positive form whichever fragment supplied it.
func (e *nodeEntry) addTags(tags []string) {
	for _, tag := range tags {
		if model.IsNegated(tag) {
			if base := model.StripNegation(tag); base != "" {
				e.negated[base] = true
			}
			continue
		}
		if !e.node.HasTag(tag) {
			e.node.Tags = append(e.node.Tags, tag)
		}
	}
}

func (m *merger) deleteNode(id string) {
	m.deletedNodes[id] = true
	delete(m.nodes, id)
	for key, link := range m.links {
		if link.Touches(id) {
			delete(m.links, key)
		}
	}
}

func (m *merger) mergeLink(fragment int, link model.Link) {
	if link.Source == "" || link.Target == "" {
		m.warn(&InvalidEntryError{Fragment: fragment, Kind: "link", Value: link.Name, Reason: "missing endpoint"})
		return
	}

	negated := model.IsNegated(link.Name)
	baseName := model.StripNegation(link.Name)
	if negated && baseName == "" {
		m.warn(&InvalidEntryError{Fragment: fragment, Kind: "link", Value: link.Name, Reason: "negation of an empty name"})
		return
	}

	key := newLinkKey(link.Source, link.Target, baseName)
	if negated {
		m.deletedLinks[key] = true
		delete(m.links, key)
		return
	}
	if m.deletedLinks[key] || m.deletedNodes[link.Source] || m.deletedNodes[link.Target] {
		return
	}

	existing, exists := m.links[key]
	if !exists {
		dup := link.Clone()
		m.links[key] = &dup
		m.linkOrder = append(m.linkOrder, key)
		return
	}
	existing.Attrs = fillAttrs(existing.Attrs, link.Attrs)
}

// squashNodes folds repeated ids within one fragment: a later entry's non-empty fields
// override the earlier entry's and tags are unioned. The folded node keeps the position of
// the first occurrence. Negated and id-less entries pass through untouched.
func squashNodes(nodes []model.Node) []model.Node {
	out := make([]model.Node, 0, len(nodes))
	index := make(map[string]int)
	for _, node := range nodes {
		if node.ID == "" || model.IsNegated(node.ID) {
			out = append(out, node)
			continue
		}
		pos, seen := index[node.ID]
		if !seen {
			index[node.ID] = len(out)
			out = append(out, node)
			continue
		}

		prev := &out[pos]
		if !model.IsEmpty(node.Name) {
			prev.Name = node.Name
		}
		prev.Tags = append(append(make([]string, 0, len(prev.Tags)+len(node.Tags)), prev.Tags...), node.Tags...)
		prev.Attrs = overrideAttrs(prev.Attrs, node.Attrs)
	}
	return out
}

// squashLinks is squashNodes for links sharing an identity key within one fragment.
func squashLinks(links []model.Link) []model.Link {
	out := make([]model.Link, 0, len(links))
	index := make(map[linkKey]int)
	for _, link := range links {
		if link.Source == "" || link.Target == "" || model.IsNegated(link.Name) {
			out = append(out, link)
			continue
		}
		key := newLinkKey(link.Source, link.Target, link.Name)
		pos, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, link)
			continue
		}
		out[pos].Attrs = overrideAttrs(out[pos].Attrs, link.Attrs)
	}
	return out
}

// overrideAttrs returns a new map holding dst with every non-empty value of src laid over it.
func overrideAttrs(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	out := make(map[string]any, len(dst)+len(src))
	for key, value := range dst {
		out[key] = value
	}
	for key, value := range src {
		if !model.IsEmpty(value) {
			out[key] = value
		}
	}
	return out
}

// fillEmpty sets *dst to value when the accumulated value is empty.
func fillEmpty(dst *string, value string) {
	if model.IsEmpty(*dst) && !model.IsEmpty(value) {
		*dst = value
	}
}

// fillAttrs copies lower-priority attributes into slots the accumulated record left empty.
func fillAttrs(dst, src map[string]any) map[string]any {
	for key, value := range src {
		if model.IsEmpty(value) {
			continue
		}
		if current, ok := dst[key]; ok && !model.IsEmpty(current) {
			continue
		}
		if dst == nil {
			dst = make(map[string]any, len(src))
		}
		dst[key] = model.CloneValue(value)
	}
	return dst
}

// graph emits the surviving accumulated entities in first-insertion order.
func (m *merger) graph() *model.Graph {
	g := model.NewGraph()
	for _, id := range m.nodeOrder {
		entry, ok := m.nodes[id]
		if !ok {
			continue
		}
		node := entry.node
		tags := make([]string, 0, len(node.Tags))
		for _, tag := range node.Tags {
			if !entry.negated[tag] {
				tags = append(tags, tag)
			}
		}
		node.Tags = tags
		g.AddNode(node)
	}
	for _, key := range m.linkOrder {
		if link, ok := m.links[key]; ok {
			g.AddLink(*link)
		}
	}
	return g
}
