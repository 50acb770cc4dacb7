package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umsu/umsugraph/pkg/model"
)

func ptr[T any](v T) *T { return &v }

func TestTable_FirstMatchWins(t *testing.T) {
	table := NewTable([]model.Group{
		{Tag: "officer", Colour: ptr("#0000ff")},
		{Tag: "person", Colour: ptr("#ff0000"), Radius: ptr(2.0)},
		{Tag: "officer", Radius: ptr(5.0)},
	})

	tags := []string{"person", "officer"}
	assert.Equal(t, "#0000ff", table.Colour(tags))
	// officer's first group has no radius, so the next matching group supplies it
	assert.Equal(t, 2.0, table.Radius(tags))
	assert.Equal(t, 5.0, table.Radius([]string{"officer"}))
	assert.Equal(t, Style{Colour: "#ff0000", Radius: 2}, table.Style([]string{"person"}))
}

func TestTable_DefaultFallback(t *testing.T) {
	table := NewTable([]model.Group{{Tag: "person", Colour: ptr("#ff0000")}})

	assert.Equal(t, DefaultStyle, table.Style(nil))
	assert.Equal(t, DefaultStyle, table.Style([]string{"unknown"}))
	assert.Equal(t, 1.0, table.Radius([]string{"person"}))
	assert.Equal(t, "#b3b3b3", table.Colour([]string{}))
}

func TestTable_Lookup(t *testing.T) {
	table := NewTable(nil)
	assert.Equal(t, DefaultStyle.Colour, table.Lookup(nil, PropertyColour))
	assert.Equal(t, DefaultStyle.Radius, table.Lookup(nil, PropertyRadius))
	assert.Nil(t, table.Lookup(nil, Property("shape")))
}

func TestTable_AppendedRulesRankLast(t *testing.T) {
	table := NewTable([]model.Group{{Tag: "a", Radius: ptr(3.0)}})
	table.Append(Rule{
		Match:  func(tags []string) bool { return len(tags) > 2 },
		Radius: ptr(10.0),
	})

	assert.Equal(t, 3.0, table.Radius([]string{"a", "b", "c"}))
	assert.Equal(t, 10.0, table.Radius([]string{"x", "y", "z"}))
	assert.Equal(t, DefaultStyle.Radius, table.Radius([]string{"x"}))
	assert.Equal(t, DefaultStyle.Colour, table.Colour([]string{"x", "y", "z"}))
}

func massGraph() (*model.Graph, []model.Component) {
	g := model.NewGraph()
	g.AddNode(model.Node{ID: "a", Tags: []string{"big"}})
	g.AddNode(model.Node{ID: "b"})
	g.AddNode(model.Node{ID: "c"})
	g.AddNode(model.Node{ID: "d"})
	g.AddNode(model.Node{ID: "e"})
	comps := []model.Component{{"a", "b"}, {"c", "d"}, {"e"}}
	return g, comps
}

func TestMasses(t *testing.T) {
	g, comps := massGraph()
	table := NewTable([]model.Group{{Tag: "big", Radius: ptr(3.0)}})

	assert.Equal(t, []float64{10, 2, 1}, Masses(g, comps, table))
}

func TestStrengthByNode_Interpolates(t *testing.T) {
	g, comps := massGraph()
	table := NewTable([]model.Group{{Tag: "big", Radius: ptr(3.0)}})

	s := StrengthByNode(g, comps, table)
	require.Len(t, s, 5)
	assert.InDelta(t, StrengthMax, s["a"], 1e-12)
	assert.InDelta(t, StrengthMax, s["b"], 1e-12)
	assert.InDelta(t, StrengthMin+(2-1)/9.0*(StrengthMax-StrengthMin), s["c"], 1e-12)
	assert.InDelta(t, StrengthMin, s["e"], 1e-12)

	for id, v := range s {
		assert.GreaterOrEqual(t, v, StrengthMin, id)
		assert.LessOrEqual(t, v, StrengthMax, id)
	}
}

func TestStrengthByNode_SingleComponentIsMidpoint(t *testing.T) {
	g := model.NewGraph()
	g.AddNode(model.Node{ID: "a", Tags: []string{"big"}})
	g.AddNode(model.Node{ID: "b"})
	comps := []model.Component{{"a", "b"}}

	s := StrengthByNode(g, comps, NewTable(nil))
	mid := (StrengthMin + StrengthMax) / 2
	assert.Equal(t, map[string]float64{"a": mid, "b": mid}, s)
}

func TestStrengthByNode_TiedMassesAreMidpoint(t *testing.T) {
	g := model.NewGraph()
	g.AddNode(model.Node{ID: "a"})
	g.AddNode(model.Node{ID: "b"})
	comps := []model.Component{{"a"}, {"b"}}

	s := StrengthByNode(g, comps, NewTable(nil))
	assert.Equal(t, DefaultBounds.Midpoint(), s["a"])
	assert.Equal(t, DefaultBounds.Midpoint(), s["b"])
}

func TestStrengthByNode_NoComponents(t *testing.T) {
	assert.Empty(t, StrengthByNode(model.NewGraph(), nil, NewTable(nil)))
}

func TestBounds(t *testing.T) {
	assert.NoError(t, DefaultBounds.Validate())
	assert.ErrorIs(t, Bounds{Min: 0.5, Max: 0.1}.Validate(), ErrInvalidBounds)
	assert.Error(t, Bounds{Min: -1, Max: 0.1}.Validate())

	custom := Bounds{Min: 0, Max: 1}
	g, comps := massGraph()
	s := custom.StrengthByNode(g, comps, NewTable(nil))
	// Without groups every node has radius 1: masses 2, 2, 1
	assert.Equal(t, 1.0, s["a"])
	assert.Equal(t, 0.0, s["e"])
}

func TestDefaultForces(t *testing.T) {
	assert.Equal(t, 150.0, DefaultForces.LinkDistance)
	assert.Equal(t, 2.1, DefaultForces.LinkStrength)
	assert.Equal(t, -700.0, DefaultForces.ChargeStrength)
	assert.Equal(t, DefaultBounds, DefaultForces.Strength)
}
