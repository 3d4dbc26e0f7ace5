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

package zonaggutil

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/landmodel/zonagg"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
)

// Run executes one full aggregation pass as configured in cfg: it opens
// the zone and measurement rasters, folds every window, projects the
// accumulated totals, writes the result document (and the compact
// export, if configured), and marks the job completed.
func Run(ctx context.Context, cfg *viper.Viper) error {
	status, err := zonagg.LoadStatus(cfg.GetString("StatusFile"))
	if err != nil {
		return err
	}

	files := expandStringSlice(cfg.GetStringSlice("MeasurementFiles"))
	vars := cfg.GetStringSlice("MeasurementVars")
	if len(files) == 0 {
		return fmt.Errorf("zonagg: no MeasurementFiles configured")
	}
	if len(files) != len(vars) {
		return fmt.Errorf("zonagg: %d MeasurementFiles but %d MeasurementVars", len(files), len(vars))
	}

	zones, err := zonagg.OpenCOARDSZoneRaster(os.ExpandEnv(cfg.GetString("ZoneGrid")), cfg.GetString("ZoneVar"))
	if err != nil {
		return err
	}
	defer zones.Close()

	layers := make([]zonagg.Layer, len(files))
	for i, f := range files {
		r, err := zonagg.OpenCOARDSRaster(f, vars[i])
		if err != nil {
			return err
		}
		defer r.Close()
		layers[i] = zonagg.Layer{Name: vars[i], Reader: r}
	}

	job, err := zonagg.NewJob(zones, status, layers...)
	if err != nil {
		return err
	}
	job.BlockSize = cfg.GetInt("BlockSize")
	job.Workers = cfg.GetInt("Workers")
	if n := cfg.GetInt("ReadRetries"); n >= 0 {
		job.ReadRetries = uint64(n)
	}

	lookup, err := loadLookup(cfg)
	if err != nil {
		return err
	}

	g := zones.Grid()
	log.Printf("zonagg: aggregating %d layers over %dx%d zone grid", len(layers), g.Nx, g.Ny)
	acc, err := job.Run(ctx)
	if err != nil {
		return err
	}

	// The job stays running until the results are durably persisted;
	// any error between here and Complete transitions it to failed so
	// an observer never sees a run stuck at 100%.
	fail := func(err error) error {
		if serr := status.Fail(err); serr != nil {
			log.Printf("zonagg: recording failure: %v", serr)
		}
		return err
	}

	proj := &zonagg.Projection{
		PixelAreaHa: pixelAreaHa(cfg),
		NetLayer:    cfg.GetString("NetLayer"),
		Lookup:      lookup,
	}
	records, summary, err := proj.Project(acc)
	if err != nil {
		return fail(err)
	}

	outFile := os.ExpandEnv(cfg.GetString("OutputFile"))
	doc := zonagg.NewResultDoc(proj, acc.Layers(), records, summary)
	doc.Description = fmt.Sprintf("Per-zone aggregation of %d measurement layers", len(layers))
	if err := zonagg.WriteResults(outFile, doc); err != nil {
		return fail(err)
	}
	if compact := os.ExpandEnv(cfg.GetString("CompactFile")); compact != "" {
		netLayer := proj.NetLayer
		if netLayer == "" {
			netLayer = acc.Layers()[0]
		}
		if err := zonagg.WriteCompact(compact, netLayer, records); err != nil {
			return fail(err)
		}
	}
	if err := status.Complete(summary.Zones, outFile); err != nil {
		return err
	}
	log.Printf("zonagg: completed: %d zones, %d pixels, results in %s", summary.Zones, summary.Pixels, outFile)
	return nil
}

// pixelAreaHa returns the configured pixel area, deriving it from the
// metric pixel edge length when PixelAreaHa is unset or non-positive.
func pixelAreaHa(cfg *viper.Viper) float64 {
	if a := cfg.GetFloat64("PixelAreaHa"); a > 0 {
		return a
	}
	edge := cfg.GetFloat64("PixelEdgeMeters")
	return zonagg.PixelAreaHa(edge, edge)
}

// loadLookup loads the zone lookup table configured in cfg, preferring
// the JSON file over the shapefile. Returns nil when neither is
// configured.
func loadLookup(cfg *viper.Viper) (*zonagg.ZoneLookup, error) {
	if f := os.ExpandEnv(cfg.GetString("LookupFile")); f != "" {
		return zonagg.ReadZoneLookup(f)
	}
	if f := os.ExpandEnv(cfg.GetString("LookupShapefile")); f != "" {
		return zonagg.ReadZoneLookupShp(f,
			cfg.GetString("LookupIDField"),
			cfg.GetString("LookupNameField"),
			cfg.GetString("LookupRegionField"))
	}
	return nil, nil
}

// expandStringSlice expands environment variables in each element of s.
func expandStringSlice(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = os.ExpandEnv(v)
	}
	return out
}

// printStatus writes s to the command's output as indented JSON.
func printStatus(cmd *cobra.Command, s zonagg.Status) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(b))
	return nil
}
