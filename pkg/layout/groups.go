// Package layout turns group tables and component structure into the numbers the
// force-layout collaborator consumes: per-node colour and radius, and a per-node
// positional strength that keeps disconnected clusters near the centre.
package layout

import (
	"github.com/umsu/umsugraph/pkg/model"
)

// Property names a group attribute.
type Property string

const (
	PropertyColour Property = "colour"
	PropertyRadius Property = "radius"
)

// Style is the resolved rendering attributes of a node.
type Style struct {
	Colour string  `json:"colour"`
	Radius float64 `json:"radius"`
}

// DefaultStyle applies when no group defines a property for a node's tags.
var DefaultStyle = Style{Colour: "#b3b3b3", Radius: 1}

// Rule pairs a tag predicate with the attributes it contributes. A nil attribute is
// undefined and lets later rules supply it.
type Rule struct {
	Match  func(tags []string) bool
	Colour *string
	Radius *float64
}

// Table resolves node attributes through an ordered rule list with a fixed fallback.
// The first rule that matches and defines the requested property wins.
type Table struct {
	rules    []Rule
	fallback Style
}

// NewTable builds a table from groups in priority order, falling back to DefaultStyle.
func NewTable(groups []model.Group) *Table {
	t := &Table{fallback: DefaultStyle}
	for _, g := range groups {
		t.Append(Rule{
			Match:  hasTag(g.Tag),
			Colour: g.Colour,
			Radius: g.Radius,
		})
	}
	return t
}

// Append adds a rule with the lowest priority.
func (t *Table) Append(r Rule) {
	t.rules = append(t.rules, r)
}

func hasTag(tag string) func([]string) bool {
	return func(tags []string) bool {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
		return false
	}
}

// Colour resolves the colour for a tag set.
func (t *Table) Colour(tags []string) string {
	if len(tags) > 0 {
		for _, r := range t.rules {
			if r.Colour != nil && r.Match(tags) {
				return *r.Colour
			}
		}
	}
	return t.fallback.Colour
}

// Radius resolves the radius for a tag set.
func (t *Table) Radius(tags []string) float64 {
	if len(tags) > 0 {
		for _, r := range t.rules {
			if r.Radius != nil && r.Match(tags) {
				return *r.Radius
			}
		}
	}
	return t.fallback.Radius
}

// Lookup resolves a property by name; unknown properties resolve to nil.
func (t *Table) Lookup(tags []string, p Property) any {
	switch p {
	case PropertyColour:
		return t.Colour(tags)
	case PropertyRadius:
		return t.Radius(tags)
	}
	return nil
}

// Style resolves every property for a tag set.
func (t *Table) Style(tags []string) Style {
	return Style{Colour: t.Colour(tags), Radius: t.Radius(tags)}
}
