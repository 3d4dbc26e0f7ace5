/*
Copyright © 2026 the Zonagg authors.
This file is part of Zonagg.

Zonagg is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Zonagg is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Zonagg.  If not, see <http://www.gnu.org/licenses/>.
*/

package zonagg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
)

func TestPixelAreaHa(t *testing.T) {
	if got := PixelAreaHa(30, 30); different(got, 0.09, testTolerance) {
		t.Errorf("30 m pixel: got %g ha, want 0.09", got)
	}
	if got := PixelAreaHa(30, -30); different(got, 0.09, testTolerance) {
		t.Errorf("north-up pixel: got %g ha, want 0.09", got)
	}
}

// testProjectionAcc holds zones 1 (1 pixel), 2 (2 pixels), and
// 3 (1 pixel) with loss sums 2, 10, 8 and flux sums 1, -3, 5.
func testProjectionAcc(t *testing.T) *Accumulator {
	t.Helper()
	acc := NewAccumulator("loss", "flux")
	zones := intWindow(t, [][]int{{1, 2}, {2, 3}})
	loss := floatWindow(t, [][]float64{{2, 4}, {6, 8}})
	flux := floatWindow(t, [][]float64{{1, -1}, {-2, 5}})
	if err := acc.Fold(zones, []*sparse.DenseArray{loss, flux}); err != nil {
		t.Fatal(err)
	}
	return acc
}

func testProjection() *Projection {
	return &Projection{
		PixelAreaHa: 0.09,
		NetLayer:    "flux",
		Lookup: &ZoneLookup{
			Names:   map[int]string{1: "Adorf", 2: "Bstadt"},
			Regions: map[int]string{1: "Sachsen", 2: "Sachsen", 3: "Bayern"},
		},
	}
}

func TestProject(t *testing.T) {
	acc := testProjectionAcc(t)
	p := testProjection()
	records, summary, err := p.Project(acc)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	z1 := records[0]
	if z1.ZoneID != 1 || z1.Name != "Adorf" || z1.Region != "Sachsen" {
		t.Errorf("zone 1 identity: %+v", z1)
	}
	if different(z1.AreaHa, 0.09, testTolerance) ||
		different(z1.Totals["loss"], 0.18, testTolerance) ||
		different(z1.PerHa["loss"], 2, testTolerance) {
		t.Errorf("zone 1 loss: %+v", z1)
	}
	if !z1.NetSource {
		t.Error("zone 1 has positive net flux and must be a net source")
	}

	z2 := records[1]
	if different(z2.Totals["flux"], -3*0.09, testTolerance) || z2.NetSource {
		t.Errorf("zone 2 flux: %+v", z2)
	}

	z3 := records[2]
	if z3.Name != "zone-3" {
		t.Errorf("zone 3 without a lookup entry got name %q", z3.Name)
	}

	if summary.Zones != 3 || summary.Pixels != 4 ||
		different(summary.AreaHa, 0.36, testTolerance) {
		t.Errorf("summary: %+v", summary)
	}
	if different(summary.Totals["loss"], 1.8, testTolerance) ||
		different(summary.Totals["flux"], 0.27, testTolerance) {
		t.Errorf("summary totals: %v", summary.Totals)
	}
	if summary.NetSources != 2 || summary.NetSinks != 1 {
		t.Errorf("got %d sources and %d sinks, want 2 and 1", summary.NetSources, summary.NetSinks)
	}
}

func TestProjectErrors(t *testing.T) {
	acc := testProjectionAcc(t)
	p := &Projection{PixelAreaHa: 0}
	if _, _, err := p.Project(acc); err == nil {
		t.Error("expected error for non-positive pixel area")
	}
	p = &Projection{PixelAreaHa: 0.09, NetLayer: "bogus"}
	if _, _, err := p.Project(acc); err == nil {
		t.Error("expected error for unknown net layer")
	}
}

func TestProjectRegions(t *testing.T) {
	acc := testProjectionAcc(t)
	p := testProjection()
	records, _, err := p.Project(acc)
	if err != nil {
		t.Fatal(err)
	}
	regions := p.ProjectRegions(records)
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if regions[0].Region != "Bayern" || regions[1].Region != "Sachsen" {
		t.Fatalf("regions out of order: %q, %q", regions[0].Region, regions[1].Region)
	}
	b := regions[0]
	if b.Zones != 1 || b.Pixels != 1 || !b.NetSource ||
		different(b.Totals["flux"], 0.45, testTolerance) {
		t.Errorf("Bayern: %+v", b)
	}
	s := regions[1]
	if s.Zones != 2 || s.Pixels != 3 || s.NetSource ||
		different(s.Totals["flux"], -0.18, testTolerance) {
		t.Errorf("Sachsen: %+v", s)
	}
}

func TestCheckSummary(t *testing.T) {
	acc := testProjectionAcc(t)
	p := testProjection()
	_, summary, err := p.Project(acc)
	if err != nil {
		t.Fatal(err)
	}

	// An independent pass over the same windows with every positive
	// zone id collapsed to one zone: the per-zone roll-up must conserve
	// it regardless of how pixels were attributed.
	ungrouped := NewAccumulator("loss", "flux")
	zones := intWindow(t, [][]int{{1, 1}, {1, 1}})
	loss := floatWindow(t, [][]float64{{2, 4}, {6, 8}})
	flux := floatWindow(t, [][]float64{{1, -1}, {-2, 5}})
	if err := ungrouped.Fold(zones, []*sparse.DenseArray{loss, flux}); err != nil {
		t.Fatal(err)
	}
	if err := CheckSummary(summary, ungrouped, p, 1e-10); err != nil {
		t.Error(err)
	}

	other := NewAccumulator("loss", "flux")
	if err := other.Fold(intWindow(t, [][]int{{1}}),
		[]*sparse.DenseArray{floatWindow(t, [][]float64{{2}}), floatWindow(t, [][]float64{{1}})}); err != nil {
		t.Fatal(err)
	}
	if err := CheckSummary(summary, other, p, 1e-10); err == nil {
		t.Error("expected pixel conservation failure")
	}

	// A per-zone pass that dropped value at a pixel fails the sum
	// check even when the pixel count is conserved.
	skewed := NewAccumulator("loss", "flux")
	lossSkewed := floatWindow(t, [][]float64{{2, 4}, {6, 0}})
	if err := skewed.Fold(zones, []*sparse.DenseArray{lossSkewed, flux}); err != nil {
		t.Fatal(err)
	}
	if _, skewedSummary, err := p.Project(skewed); err != nil {
		t.Fatal(err)
	} else if err := CheckSummary(skewedSummary, ungrouped, p, 1e-10); err == nil {
		t.Error("expected sum conservation failure")
	}
}

func TestWriteResults(t *testing.T) {
	acc := testProjectionAcc(t)
	p := testProjection()
	records, summary, err := p.Project(acc)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "results.json")
	doc := NewResultDoc(p, acc.Layers(), records, summary)
	if err := WriteResults(path, doc); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got ResultDoc
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Summary.Zones != 3 || len(got.Zones) != 3 || len(got.Regions) != 2 {
		t.Errorf("reloaded document: summary %+v, %d zones, %d regions",
			got.Summary, len(got.Zones), len(got.Regions))
	}
	if different(got.PixelAreaHa, 0.09, testTolerance) {
		t.Errorf("got pixel area %g, want 0.09", got.PixelAreaHa)
	}
}

func TestWriteCompact(t *testing.T) {
	acc := testProjectionAcc(t)
	p := testProjection()
	records, _, err := p.Project(acc)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "compact.json")
	if err := WriteCompact(path, "flux", records); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]struct {
		Name   string  `json:"n"`
		Pixels int     `json:"p"`
		Total  float64 `json:"t"`
		Rate   float64 `json:"r"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	z2 := got["2"]
	if z2.Name != "Bstadt" || z2.Pixels != 2 ||
		different(z2.Total, -0.27, testTolerance) || different(z2.Rate, -1.5, testTolerance) {
		t.Errorf(`entry "2": %+v`, z2)
	}
}
