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
	"fmt"
	"os"
	"time"
)

// A ResultDoc is the exported result document consumed by downstream
// unit conversion, economic modeling, and report formatting.
type ResultDoc struct {
	Description string            `json:"description,omitempty"`
	Units       map[string]string `json:"units,omitempty"`
	GeneratedAt string            `json:"generated_at"`
	PixelAreaHa float64           `json:"pixel_area_ha"`
	Layers      []string          `json:"layers"`
	Summary     Summary           `json:"summary"`
	Regions     []RegionRecord    `json:"regions,omitempty"`
	Zones       []ZoneRecord      `json:"zones"`
}

// NewResultDoc assembles a result document from projected records.
func NewResultDoc(p *Projection, layers []string, records []ZoneRecord, summary Summary) *ResultDoc {
	return &ResultDoc{
		GeneratedAt: time.Now().Format(time.RFC3339),
		PixelAreaHa: p.PixelAreaHa,
		Layers:      layers,
		Summary:     summary,
		Regions:     p.ProjectRegions(records),
		Zones:       records,
	}
}

// WriteResults writes the result document as indented JSON to path.
func WriteResults(path string, doc *ResultDoc) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("zonagg: encoding results: %v", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("zonagg: writing results to %s: %v", path, err)
	}
	return nil
}

// compactRecord is the abbreviated per-zone record used by map
// front ends, keyed to keep the file small:
// n = name, p = pixels, t = net total, r = net per-hectare rate.
type compactRecord struct {
	Name   string  `json:"n"`
	Pixels int     `json:"p"`
	Total  float64 `json:"t"`
	Rate   float64 `json:"r"`
}

// WriteCompact writes an abbreviated zone-keyed map of the given net
// layer to path, unindented.
func WriteCompact(path, netLayer string, records []ZoneRecord) error {
	m := make(map[string]compactRecord, len(records))
	for _, rec := range records {
		m[fmt.Sprintf("%d", rec.ZoneID)] = compactRecord{
			Name:   rec.Name,
			Pixels: rec.Pixels,
			Total:  rec.Totals[netLayer],
			Rate:   rec.PerHa[netLayer],
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("zonagg: encoding compact results: %v", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("zonagg: writing compact results to %s: %v", path, err)
	}
	return nil
}
