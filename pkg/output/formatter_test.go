package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"

	"github.com/umsu/umsugraph/pkg/layout"
	"github.com/umsu/umsugraph/pkg/model"
	"github.com/umsu/umsugraph/pkg/web"
)

func init() {
	color.NoColor = true
}

func snapshot(warnings ...error) *web.Snapshot {
	g := model.NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(model.Node{ID: id, Name: strings.ToUpper(id)})
	}
	g.AddLink(model.Link{Source: "a", Target: "b"})
	return web.NewSnapshot(g, layout.NewTable(nil), layout.DefaultForces, warnings, []string{"base.json", "overlay.yaml"})
}

func TestPrintMergeReport_Clean(t *testing.T) {
	var buf bytes.Buffer
	PrintMergeReport(&buf, snapshot())
	out := buf.String()

	for _, want := range []string{
		"Datasets: 2",
		"2. overlay.yaml",
		"Nodes: 3",
		"Links: 1",
		"COMPONENTS (2):",
		"#0  size=2 mass=2 strength=0.0450",
		"#1  size=1 mass=1 strength=0.0250",
		"a, b",
		"Merged cleanly",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "WARNINGS") {
		t.Errorf("unexpected warnings section:\n%s", out)
	}
}

func TestPrintMergeReport_Warnings(t *testing.T) {
	var buf bytes.Buffer
	PrintMergeReport(&buf, snapshot(errors.New("fragment 0 (x.json): missing nodes sequence")))
	out := buf.String()

	if !strings.Contains(out, "WARNINGS (1):") || !strings.Contains(out, "missing nodes sequence") {
		t.Errorf("warnings not reported:\n%s", out)
	}
	if !strings.Contains(out, "merged with 1 warning(s)") {
		t.Errorf("missing summary:\n%s", out)
	}
}

func TestPrintMergeReport_TruncatesLargeComponents(t *testing.T) {
	g := model.NewGraph()
	for i := 0; i < 12; i++ {
		g.AddNode(model.Node{ID: string(rune('a' + i))})
		if i > 0 {
			g.AddLink(model.Link{Source: string(rune('a' + i - 1)), Target: string(rune('a' + i))})
		}
	}
	snap := web.NewSnapshot(g, layout.NewTable(nil), layout.DefaultForces, nil, nil)

	var buf bytes.Buffer
	PrintMergeReport(&buf, snap)
	if !strings.Contains(buf.String(), "+4 more") {
		t.Errorf("expected truncated member list:\n%s", buf.String())
	}
}

func TestWriteGraphJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGraphJSON(&buf, snapshot()); err != nil {
		t.Fatalf("WriteGraphJSON failed: %v", err)
	}

	var view web.GraphView
	if err := json.Unmarshal(buf.Bytes(), &view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(view.Nodes) != 3 || len(view.Links) != 1 {
		t.Errorf("expected 3 nodes and 1 link, got %d/%d", len(view.Nodes), len(view.Links))
	}
	if view.Nodes[0].Colour != layout.DefaultStyle.Colour {
		t.Errorf("expected default colour, got %s", view.Nodes[0].Colour)
	}
}
