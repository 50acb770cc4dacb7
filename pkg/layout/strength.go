package layout

import (
	"github.com/cockroachdb/errors"

	"github.com/umsu/umsugraph/pkg/model"
)

// Default bounds of the positional strength handed to the force engine.
const (
	StrengthMin = 0.025
	StrengthMax = 0.045
)

// Bounds is the output range of the mass normalisation.
type Bounds struct {
	Min float64 `json:"min" koanf:"min"`
	Max float64 `json:"max" koanf:"max"`
}

// DefaultBounds is [StrengthMin, StrengthMax].
var DefaultBounds = Bounds{Min: StrengthMin, Max: StrengthMax}

// ErrInvalidBounds marks a negative or inverted strength range.
var ErrInvalidBounds = errors.New("invalid strength bounds")

// Validate rejects empty or inverted ranges.
func (b Bounds) Validate() error {
	if b.Min < 0 || b.Max < b.Min {
		return errors.Wrapf(ErrInvalidBounds, "[%g, %g]", b.Min, b.Max)
	}
	return nil
}

// Midpoint is the strength every node gets when there is nothing to normalise against.
func (b Bounds) Midpoint() float64 {
	return (b.Min + b.Max) / 2
}

// Masses returns the mass of each component: the sum of its members' squared radii.
func Masses(g *model.Graph, comps []model.Component, t *Table) []float64 {
	tags := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		tags[n.ID] = n.Tags
	}

	masses := make([]float64, len(comps))
	for i, comp := range comps {
		for _, id := range comp {
			r := t.Radius(tags[id])
			masses[i] += r * r
		}
	}
	return masses
}

// StrengthByNode maps each node to a strength in [StrengthMin, StrengthMax] by
// linear interpolation of its component's mass.
func StrengthByNode(g *model.Graph, comps []model.Component, t *Table) map[string]float64 {
	return DefaultBounds.StrengthByNode(g, comps, t)
}

// StrengthByNode is StrengthByNode with custom bounds. When every component has the same
// mass (including a single component) all nodes receive the midpoint.
func (b Bounds) StrengthByNode(g *model.Graph, comps []model.Component, t *Table) map[string]float64 {
	strengths := make(map[string]float64)
	if len(comps) == 0 {
		return strengths
	}

	masses := Masses(g, comps, t)
	minMass, maxMass := masses[0], masses[0]
	for _, m := range masses[1:] {
		minMass = min(minMass, m)
		maxMass = max(maxMass, m)
	}

	if minMass == maxMass {
		mid := b.Midpoint()
		for _, comp := range comps {
			for _, id := range comp {
				strengths[id] = mid
			}
		}
		return strengths
	}

	span := maxMass - minMass
	for i, comp := range comps {
		s := b.Min + (masses[i]-minMass)/span*(b.Max-b.Min)
		// Rounding can land a hair outside the range
		s = min(max(s, b.Min), b.Max)
		for _, id := range comp {
			strengths[id] = s
		}
	}
	return strengths
}
