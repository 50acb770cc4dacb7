package graph

import (
	"reflect"
	"testing"

	"github.com/umsu/umsugraph/pkg/model"
)

func TestBuild(t *testing.T) {
	nodes := []model.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "a"}}
	links := []model.Link{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "a", Name: "other"},
		{Source: "c", Target: "missing"},
		{Source: "c", Target: "c"},
	}

	lg := Build(nodes, links)

	if lg.Len() != 3 {
		t.Fatalf("expected duplicate ids to collapse to 3 nodes, got %d", lg.Len())
	}
	if lg.Graph().Edges().Len() != 1 {
		t.Errorf("expected parallel links to share one edge, got %d", lg.Graph().Edges().Len())
	}
	if !lg.Has("c") || lg.Has("missing") {
		t.Error("unexpected membership")
	}
	if got := lg.Neighbours("c"); len(got) != 0 {
		t.Errorf("expected c to be isolated, got %v", got)
	}
}

func TestLinkGraph_IDs(t *testing.T) {
	lg := NewLinkGraph()
	lg.AddNode("x")
	lg.AddNode("y")

	gid, ok := lg.GraphID("y")
	if !ok || gid != 1 {
		t.Errorf("expected graph ID 1 for y, got %d (ok=%v)", gid, ok)
	}
	if lg.Key(gid) != "y" {
		t.Errorf("expected key y, got %q", lg.Key(gid))
	}
	if lg.Key(42) != "" || lg.Key(-1) != "" {
		t.Error("expected empty key for unknown graph IDs")
	}
	if lg.Order("x") != 0 || lg.Order("nope") != -1 {
		t.Errorf("unexpected order x=%d nope=%d", lg.Order("x"), lg.Order("nope"))
	}
}

func TestLinkGraph_AddLink(t *testing.T) {
	lg := NewLinkGraph()
	lg.AddNode("a")
	lg.AddNode("b")

	if !lg.AddLink("a", "b") {
		t.Error("expected link between known nodes to be recorded")
	}
	if !lg.AddLink("b", "a") {
		t.Error("expected reverse link to be accepted")
	}
	if lg.AddLink("a", "a") {
		t.Error("expected self-loop to be skipped")
	}
	if lg.AddLink("a", "z") {
		t.Error("expected unknown endpoint to be skipped")
	}
}

func TestLinkGraph_Neighbours(t *testing.T) {
	nodes := []model.Node{{ID: "hub"}, {ID: "n1"}, {ID: "n2"}, {ID: "n3"}}
	links := []model.Link{
		{Source: "n3", Target: "hub"},
		{Source: "hub", Target: "n1"},
	}
	lg := Build(nodes, links)

	if got := lg.Neighbours("hub"); !reflect.DeepEqual(got, []string{"n1", "n3"}) {
		t.Errorf("expected [n1 n3] in insertion order, got %v", got)
	}
	if got := lg.Neighbours("nope"); got != nil {
		t.Errorf("expected nil for unknown id, got %v", got)
	}
}
