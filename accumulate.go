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
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// ZoneTotals holds the running aggregate for one zone: the number of
// pixels attributed to the zone and one running sum per measurement
// layer. Sums are accumulated in float64 regardless of the input
// storage precision to bound floating error over hundreds of millions
// of additions.
type ZoneTotals struct {
	Pixels int
	Sums   []float64
}

// An Accumulator folds windows of zone ids and aligned measurement
// values into running per-zone totals. Zones are discovered
// dynamically: the first pixel observed for a new zone id creates its
// entry. Totals are only ever added to during a run.
//
// An Accumulator is not safe for concurrent use. For parallel folding,
// give each worker its own Accumulator and combine them with Merge,
// which is associative and commutative.
type Accumulator struct {
	layers []string
	zones  map[int]*ZoneTotals
}

// NewAccumulator creates an accumulator with one running sum per named
// measurement layer.
func NewAccumulator(layers ...string) *Accumulator {
	return &Accumulator{layers: layers, zones: make(map[int]*ZoneTotals)}
}

// Layers returns the measurement layer names in fold order.
func (a *Accumulator) Layers() []string { return a.layers }

// Fold adds one window to the running totals. layerWindows must be
// ordered like the accumulator's layers; a nil entry means the layer
// had no data for this window (for example an out-of-bounds read) and
// contributes nothing. Pixels with zone id ≤ 0 are skipped entirely and
// never counted. For each remaining pixel the zone's pixel count is
// incremented, and each layer's value is added to that zone's sum for
// the layer unless it is NaN—one layer's missing value never suppresses
// another layer's valid value at the same pixel.
func (a *Accumulator) Fold(zones *sparse.DenseArrayInt, layerWindows []*sparse.DenseArray) error {
	if len(layerWindows) != len(a.layers) {
		return fmt.Errorf("zonagg: fold got %d layer windows for %d layers", len(layerWindows), len(a.layers))
	}
	if len(zones.Shape) != 2 {
		return fmt.Errorf("zonagg: fold zone window must be 2-dimensional but has shape %v", zones.Shape)
	}
	for i, lw := range layerWindows {
		if lw == nil {
			continue
		}
		if len(lw.Shape) != 2 || lw.Shape[0] != zones.Shape[0] || lw.Shape[1] != zones.Shape[1] {
			return fmt.Errorf("zonagg: fold layer %s window shape %v does not match zone window shape %v",
				a.layers[i], lw.Shape, zones.Shape)
		}
	}
	for i, zid := range zones.Elements {
		if zid <= 0 {
			continue
		}
		zt := a.zones[zid]
		if zt == nil {
			zt = &ZoneTotals{Sums: make([]float64, len(a.layers))}
			a.zones[zid] = zt
		}
		zt.Pixels++
		for li, lw := range layerWindows {
			if lw == nil {
				continue
			}
			if v := lw.Elements[i]; !math.IsNaN(v) {
				zt.Sums[li] += v
			}
		}
	}
	return nil
}

// Merge adds b's totals into a. The two accumulators must have been
// created with the same layers.
func (a *Accumulator) Merge(b *Accumulator) error {
	if len(a.layers) != len(b.layers) {
		return fmt.Errorf("zonagg: merging accumulators with %d and %d layers", len(a.layers), len(b.layers))
	}
	for i := range a.layers {
		if a.layers[i] != b.layers[i] {
			return fmt.Errorf("zonagg: merging accumulators with different layers %v and %v", a.layers, b.layers)
		}
	}
	for zid, bt := range b.zones {
		zt := a.zones[zid]
		if zt == nil {
			zt = &ZoneTotals{Sums: make([]float64, len(a.layers))}
			a.zones[zid] = zt
		}
		zt.Pixels += bt.Pixels
		for li, s := range bt.Sums {
			zt.Sums[li] += s
		}
	}
	return nil
}

// Zone returns the totals for the given zone id, or nil if no pixel of
// the zone has been observed.
func (a *Accumulator) Zone(id int) *ZoneTotals { return a.zones[id] }

// ZoneIDs returns the ids of all observed zones in increasing order.
func (a *Accumulator) ZoneIDs() []int {
	ids := make([]int, 0, len(a.zones))
	for id := range a.zones {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// NumZones returns the number of zones observed so far.
func (a *Accumulator) NumZones() int { return len(a.zones) }

// TotalPixels returns the total number of pixels attributed to any
// zone.
func (a *Accumulator) TotalPixels() int {
	var n int
	for _, zt := range a.zones {
		n += zt.Pixels
	}
	return n
}
