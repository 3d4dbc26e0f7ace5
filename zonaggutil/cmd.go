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

// Package zonaggutil holds the command-line interface for the zonal
// aggregation engine.
package zonaggutil

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/landmodel/zonagg"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to Zonagg.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "ZoneGrid",
			usage: `
              ZoneGrid is the path to the COARDS NetCDF raster holding one
              non-negative integer zone id per pixel, with 0 meaning "no zone".
              It is produced externally by burning zone polygons onto a pixel
              lattice matching the measurement grids' resolution.`,
			defaultVal: "raster/zone_ids.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ZoneVar",
			usage: `
              ZoneVar is the name of the zone-id variable in ZoneGrid.`,
			defaultVal: "zones",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MeasurementFiles",
			usage: `
              MeasurementFiles lists the COARDS NetCDF rasters carrying one
              floating-point measurement per pixel. Each must share the zone
              grid's pixel size; origins may differ by whole pixels and are
              reconciled automatically.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MeasurementVars",
			usage: `
              MeasurementVars lists the variable to read from each entry of
              MeasurementFiles, in the same order. Variable names double as
              output layer names.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NetLayer",
			usage: `
              NetLayer names the measurement layer whose signed total
              classifies a zone as a net source (positive) or net sink.
              Defaults to the first layer when empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PixelAreaHa",
			usage: `
              PixelAreaHa is the area of one pixel in hectares. Pick one
              documented convention per job: 0.09 for a nominal 30 m pixel,
              or a latitude-corrected figure (about 0.053 at 47°N for
              0.00025° pixels). The two are not interchangeable. Set to 0
              to derive the area from PixelEdgeMeters instead.`,
			defaultVal: 0.09,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PixelEdgeMeters",
			usage: `
              PixelEdgeMeters is the metric edge length of one pixel, used
              to derive the pixel area when PixelAreaHa is 0.`,
			defaultVal: 30.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "BlockSize",
			usage: `
              BlockSize is the edge length in pixels of the windows streamed
              from the rasters. It bounds peak memory and has no effect on
              results.`,
			defaultVal: zonagg.DefaultBlockSize,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of goroutines folding windows. Each
              worker accumulates into its own shard; shards are merged when
              all windows are consumed.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ReadRetries",
			usage: `
              ReadRetries bounds how many times a failed block read is
              retried before the job fails.`,
			defaultVal: int(zonagg.DefaultReadRetries),
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LookupFile",
			usage: `
              LookupFile is the path to a JSON zone lookup table mapping zone
              ids to names and parent regions, used only to decorate output.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LookupShapefile",
			usage: `
              LookupShapefile is the path to the zone polygon shapefile whose
              attribute table supplies zone names and parent regions. Ignored
              when LookupFile is set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LookupIDField",
			usage: `
              LookupIDField is the LookupShapefile attribute holding the
              numeric zone id.`,
			defaultVal: "iso",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LookupNameField",
			usage: `
              LookupNameField is the LookupShapefile attribute holding the
              zone display name.`,
			defaultVal: "name",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LookupRegionField",
			usage: `
              LookupRegionField is the LookupShapefile attribute holding the
              parent-region label. Empty disables region decoration.`,
			defaultVal: "state",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the per-zone result document is
              written.`,
			defaultVal: "zonal_results.json",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CompactFile",
			usage: `
              CompactFile is the path where the abbreviated zone-keyed map of
              the net layer is written. Empty disables the compact export.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "StatusFile",
			usage: `
              StatusFile is the path where job status is persisted after
              every processed window.`,
			defaultVal: "zonagg_status.json",
			flagsets: []*pflag.FlagSet{
				runCmd.Flags(), statusCmd.Flags(), resetCmd.Flags(), serveCmd.Flags(),
			},
		},
		{
			name: "ListenAddr",
			usage: `
              ListenAddr is the address the status server listens on.`,
			defaultVal: ":8080",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("ZONAGG")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(statusCmd)
	Root.AddCommand(resetCmd)
	Root.AddCommand(serveCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("zonagg: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "zonagg",
	Short: "A windowed zonal-aggregation engine for gridded geospatial measurements.",
	Long: `Zonagg aggregates large gridded geospatial measurements (for example
forest-loss year or carbon flux) into per-administrative-zone statistics.
Rasters are streamed in bounded-memory windows and reconciled onto a shared
pixel lattice, so a country-sized job runs in constant memory and reports
resumable progress.

Configuration can be changed by using a configuration file (and providing
the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'ZONAGG_var'
where 'var' is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Zonagg.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Zonagg v%s\n", zonagg.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Aggregate the measurement grids by zone.",
	Long: `run streams the zone grid and every measurement grid in windows,
folds them into per-zone totals, and writes the projected result document.
Progress is persisted to StatusFile after every window, so an external
observer sees accurate last-known progress even after a crash. An
interrupted or failed run leaves previously persisted output in place and
is re-run from the start; the pass is idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return Run(ctx, Cfg)
	},
	DisableAutoGenTag: true,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted job status.",
	Long: `status prints the last persisted job status as JSON. A missing
status file reports phase "not_started".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sf, err := zonagg.LoadStatus(Cfg.GetString("StatusFile"))
		if err != nil {
			return err
		}
		return printStatus(cmd, sf.Status())
	},
	DisableAutoGenTag: true,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset a completed or failed job to not started.",
	Long: `reset forces a completed or failed job back to "not_started",
clearing the error list and progress. Resetting a running job is refused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sf, err := zonagg.LoadStatus(Cfg.GetString("StatusFile"))
		if err != nil {
			return err
		}
		if err := sf.Reset(); err != nil {
			return err
		}
		cmd.Println("Status reset")
		return nil
	},
	DisableAutoGenTag: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the persisted job status and results over HTTP.",
	Long: `serve exposes the persisted job status at /api/status and the
exported result document at /api/results, read-only, for external
observers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := Cfg.GetString("ListenAddr")
		h := zonagg.StatusHandler(Cfg.GetString("StatusFile"), Cfg.GetString("OutputFile"))
		log.Printf("zonagg: status server listening on %s", addr)
		return http.ListenAndServe(addr, h)
	},
	DisableAutoGenTag: true,
}
