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

	"github.com/ctessum/unit"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

const squareMetersPerHectare = 1.0e4

// PixelAreaHa returns the area in hectares of a pixel with the given
// edge lengths in meters. For geographic grids the edge lengths should
// already be latitude-corrected; pixel area is a per-grid convention
// that must be chosen once per job and documented, never mixed.
func PixelAreaHa(dxMeters, dyMeters float64) float64 {
	a := unit.Mul(
		unit.New(math.Abs(dxMeters), unit.Meter),
		unit.New(math.Abs(dyMeters), unit.Meter),
	)
	return a.Value() / squareMetersPerHectare
}

// A ZoneRecord is the projected aggregate for one zone. Totals are the
// per-layer running sums scaled by the pixel area; PerHa are the
// per-layer mean per-hectare rates.
type ZoneRecord struct {
	ZoneID    int                `json:"zone_id"`
	Name      string             `json:"name,omitempty"`
	Region    string             `json:"region,omitempty"`
	Pixels    int                `json:"pixels"`
	AreaHa    float64            `json:"area_ha"`
	Totals    map[string]float64 `json:"totals"`
	PerHa     map[string]float64 `json:"per_ha"`
	NetSource bool               `json:"is_net_source"`
}

// A RegionRecord aggregates the zone records sharing a parent region.
type RegionRecord struct {
	Region    string             `json:"region"`
	Zones     int                `json:"zones"`
	Pixels    int                `json:"pixels"`
	AreaHa    float64            `json:"area_ha"`
	Totals    map[string]float64 `json:"totals"`
	NetSource bool               `json:"is_net_source"`
}

// A Summary is the country-wide roll-up of all zone records. Its
// totals equal an ungrouped single-pass accumulation over the whole
// extent within floating tolerance.
type Summary struct {
	Zones      int                `json:"zones"`
	Pixels     int                `json:"pixels"`
	AreaHa     float64            `json:"area_ha"`
	Totals     map[string]float64 `json:"totals"`
	NetSources int                `json:"net_source_count"`
	NetSinks   int                `json:"net_sink_count"`
}

// A Projection converts raw accumulator state into final physical
// units.
type Projection struct {
	// PixelAreaHa is the area of one pixel [hectares].
	PixelAreaHa float64

	// NetLayer names the layer whose signed total classifies a zone as
	// a net source (positive) or net sink. If empty, the first layer
	// is used.
	NetLayer string

	// Lookup decorates records with names and regions. May be nil.
	Lookup *ZoneLookup
}

// Project converts accumulator state into per-zone records, ordered by
// zone id, plus the country-wide summary. It is a pure function of the
// accumulator: per-zone total = running sum × pixel area; per-hectare
// rate = running sum ÷ pixel count, reported as zero when the pixel
// count is zero.
func (p *Projection) Project(acc *Accumulator) ([]ZoneRecord, Summary, error) {
	if p.PixelAreaHa <= 0 {
		return nil, Summary{}, fmt.Errorf("zonagg: pixel area must be positive but is %g", p.PixelAreaHa)
	}
	layers := acc.Layers()
	net, err := p.netIndex(layers)
	if err != nil {
		return nil, Summary{}, err
	}

	ids := acc.ZoneIDs()
	records := make([]ZoneRecord, 0, len(ids))
	layerTotals := make(map[string][]float64, len(layers))
	for _, l := range layers {
		layerTotals[l] = make([]float64, 0, len(ids))
	}
	summary := Summary{Totals: make(map[string]float64, len(layers))}
	for _, id := range ids {
		zt := acc.Zone(id)
		if zt.Pixels == 0 {
			continue
		}
		rec := ZoneRecord{
			ZoneID: id,
			Name:   p.Lookup.Name(id),
			Region: p.Lookup.Region(id),
			Pixels: zt.Pixels,
			AreaHa: float64(zt.Pixels) * p.PixelAreaHa,
			Totals: make(map[string]float64, len(layers)),
			PerHa:  make(map[string]float64, len(layers)),
		}
		for li, l := range layers {
			total := zt.Sums[li] * p.PixelAreaHa
			rec.Totals[l] = total
			rec.PerHa[l] = zt.Sums[li] / float64(zt.Pixels)
			layerTotals[l] = append(layerTotals[l], total)
		}
		rec.NetSource = zt.Sums[net] > 0
		if rec.NetSource {
			summary.NetSources++
		} else {
			summary.NetSinks++
		}
		summary.Zones++
		summary.Pixels += zt.Pixels
		records = append(records, rec)
	}
	summary.AreaHa = float64(summary.Pixels) * p.PixelAreaHa
	for _, l := range layers {
		summary.Totals[l] = floats.Sum(layerTotals[l])
	}
	return records, summary, nil
}

// ProjectRegions rolls zone records up by parent region, ordered by
// region label. Zones without a region are grouped under "".
func (p *Projection) ProjectRegions(records []ZoneRecord) []RegionRecord {
	byRegion := make(map[string]*RegionRecord)
	for _, rec := range records {
		rr := byRegion[rec.Region]
		if rr == nil {
			rr = &RegionRecord{Region: rec.Region, Totals: make(map[string]float64)}
			byRegion[rec.Region] = rr
		}
		rr.Zones++
		rr.Pixels += rec.Pixels
		rr.AreaHa += rec.AreaHa
		for l, t := range rec.Totals {
			rr.Totals[l] += t
		}
	}
	out := make([]RegionRecord, 0, len(byRegion))
	for _, rr := range byRegion {
		if net, ok := rr.Totals[p.NetLayer]; ok {
			rr.NetSource = net > 0
		}
		out = append(out, *rr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

// CheckSummary verifies that summary's totals match an independently
// accumulated ungrouped pass within the given relative tolerance. It
// is a cross-check against zone-attribution bugs: the sum over zones
// must conserve the full-extent sum restricted to zone pixels.
func CheckSummary(summary Summary, ungrouped *Accumulator, p *Projection, tol float64) error {
	if n := ungrouped.TotalPixels(); n != summary.Pixels {
		return fmt.Errorf("zonagg: summary pixel count %d does not conserve ungrouped count %d",
			summary.Pixels, n)
	}
	for li, l := range ungrouped.Layers() {
		var want float64
		for _, id := range ungrouped.ZoneIDs() {
			want += ungrouped.Zone(id).Sums[li]
		}
		want *= p.PixelAreaHa
		if !scalar.EqualWithinAbsOrRel(summary.Totals[l], want, tol, tol) {
			return fmt.Errorf("zonagg: summary total for %s is %g but ungrouped total is %g",
				l, summary.Totals[l], want)
		}
	}
	return nil
}

func (p *Projection) netIndex(layers []string) (int, error) {
	if p.NetLayer == "" {
		return 0, nil
	}
	for i, l := range layers {
		if l == p.NetLayer {
			return i, nil
		}
	}
	return 0, fmt.Errorf("zonagg: net layer %q is not an accumulated layer (have %v)", p.NetLayer, layers)
}
