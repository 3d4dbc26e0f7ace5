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
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// A MissingInputError indicates that a required input file is absent or
// unreadable. It is fatal: a job never starts running without its
// inputs.
type MissingInputError struct {
	Path string
	Err  error
}

func (e MissingInputError) Error() string {
	return fmt.Sprintf("zonagg: missing input %s: %v", e.Path, e.Err)
}

// A COARDSRaster reads windows from one 2-dimensional [lat, lon]
// variable in a COARDS-compliant NetCDF file (NetCDF 4 and greater not
// supported). Data are assumed to be row-major (latitude-major), with
// the lat and lon coordinate variables holding pixel-center
// coordinates on a regular spacing. Pixels equal to the variable's
// _FillValue attribute are reported as NaN.
// Information regarding the COARDS NetCDF conventions is available
// here: https://ferret.pmel.noaa.gov/Ferret/documentation/coards-netcdf-conventions.
type COARDSRaster struct {
	f         *os.File
	nc        *cdf.File
	v         string
	def       *GridDef
	noData    float64
	hasNoData bool
}

// OpenCOARDSRaster opens variable v in the COARDS file at path.
func OpenCOARDSRaster(path, v string) (*COARDSRaster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, MissingInputError{Path: path, Err: err}
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zonagg: opening COARDS file %s: %v", path, err)
	}
	dims := nc.Header.Dimensions(v)
	if len(dims) != 2 || dims[0] != "lat" || dims[1] != "lon" {
		f.Close()
		return nil, fmt.Errorf("zonagg: variable %s in %s must have dimensions [lat, lon] but has %v", v, path, dims)
	}
	lats, err := readCoordVar(nc, "lat")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zonagg: reading lat from %s: %v", path, err)
	}
	lons, err := readCoordVar(nc, "lon")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zonagg: reading lon from %s: %v", path, err)
	}
	if len(lats) < 2 || len(lons) < 2 {
		f.Close()
		return nil, fmt.Errorf("zonagg: lat and lon in %s must have length >= 2 but have %d and %d",
			path, len(lats), len(lons))
	}
	dy := lats[1] - lats[0] // negative for north-up files
	dx := lons[1] - lons[0]
	def, err := NewGridDef(lons[0]-dx/2, lats[0]-dy/2, dx, dy, len(lons), len(lats))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zonagg: grid for %s in %s: %v", v, path, err)
	}

	r := &COARDSRaster{f: f, nc: nc, v: v, def: def}
	if fv := nc.Header.GetAttribute(v, "_FillValue"); fv != nil {
		switch fv := fv.(type) {
		case []float32:
			r.noData, r.hasNoData = float64(fv[0]), true
		case []float64:
			r.noData, r.hasNoData = fv[0], true
		case []int32:
			r.noData, r.hasNoData = float64(fv[0]), true
		case []int16:
			r.noData, r.hasNoData = float64(fv[0]), true
		default:
			f.Close()
			return nil, fmt.Errorf("zonagg: invalid type for _FillValue of %s in %s: %T", v, path, fv)
		}
	}
	return r, nil
}

// Grid returns the raster's grid descriptor, derived from the file's
// lat and lon coordinate variables.
func (c *COARDSRaster) Grid() *GridDef { return c.def }

// Close closes the underlying file.
func (c *COARDSRaster) Close() error { return c.f.Close() }

// ReadWindow implements WindowReader. Each row of the window is one
// contiguous read from the file.
func (c *COARDSRaster) ReadWindow(w Window) (*sparse.DenseArray, error) {
	if !w.In(c.def) {
		return nil, ErrOutOfBounds
	}
	out := sparse.ZerosDense(w.Nrows, w.Ncols)
	for r := 0; r < w.Nrows; r++ {
		vals, err := c.readRow(w.Row0+r, w.Col0, w.Ncols)
		if err != nil {
			return nil, err
		}
		copy(out.Elements[r*w.Ncols:(r+1)*w.Ncols], vals)
	}
	return out, nil
}

// readRow reads ncols values beginning at (row, col0), converting to
// float64 and mapping fill values to NaN.
func (c *COARDSRaster) readRow(row, col0, ncols int) ([]float64, error) {
	rdr := c.nc.Reader(c.v, []int{row, col0}, []int{row, col0 + ncols - 1})
	buf := rdr.Zero(ncols)
	if _, err := rdr.Read(buf); err != nil {
		return nil, fmt.Errorf("zonagg: reading %s row %d of %s: %v", c.v, row, c.f.Name(), err)
	}
	out := make([]float64, ncols)
	switch buf := buf.(type) {
	case []float32:
		for i, v := range buf {
			out[i] = float64(v)
		}
	case []float64:
		copy(out, buf)
	case []int32:
		for i, v := range buf {
			out[i] = float64(v)
		}
	case []int16:
		for i, v := range buf {
			out[i] = float64(v)
		}
	case []int8:
		for i, v := range buf {
			out[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("zonagg: unsupported data type %T for variable %s", buf, c.v)
	}
	if c.hasNoData {
		for i, v := range out {
			if v == c.noData {
				out[i] = math.NaN()
			}
		}
	}
	return out, nil
}

// A COARDSZoneRaster reads zone ids from a COARDS file. Fill-value and
// NaN pixels are reported as zone 0 ("no zone").
type COARDSZoneRaster struct {
	r *COARDSRaster
}

// OpenCOARDSZoneRaster opens the zone-id variable v in the COARDS file
// at path.
func OpenCOARDSZoneRaster(path, v string) (*COARDSZoneRaster, error) {
	r, err := OpenCOARDSRaster(path, v)
	if err != nil {
		return nil, err
	}
	return &COARDSZoneRaster{r: r}, nil
}

// Grid returns the raster's grid descriptor.
func (z *COARDSZoneRaster) Grid() *GridDef { return z.r.def }

// Close closes the underlying file.
func (z *COARDSZoneRaster) Close() error { return z.r.Close() }

// ReadZoneWindow implements ZoneReader.
func (z *COARDSZoneRaster) ReadZoneWindow(w Window) (*sparse.DenseArrayInt, error) {
	if !w.In(z.r.def) {
		return nil, ErrOutOfBounds
	}
	out := sparse.ZerosDenseInt(w.Nrows, w.Ncols)
	for r := 0; r < w.Nrows; r++ {
		vals, err := z.r.readRow(w.Row0+r, w.Col0, w.Ncols)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			if math.IsNaN(v) {
				continue // no zone
			}
			out.Elements[r*w.Ncols+i] = int(math.Round(v))
		}
	}
	return out, nil
}

// readCoordVar reads a 1-dimensional coordinate variable.
func readCoordVar(nc *cdf.File, v string) ([]float64, error) {
	lengths := nc.Header.Lengths(v)
	if len(lengths) != 1 {
		return nil, fmt.Errorf("coordinate variable %s must be 1-dimensional but has lengths %v", v, lengths)
	}
	r := nc.Reader(v, nil, nil)
	buf := r.Zero(lengths[0])
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	switch buf := buf.(type) {
	case []float64:
		return buf, nil
	case []float32:
		out := make([]float64, len(buf))
		for i, v := range buf {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("coordinate variable %s must be floating point but is %T", v, buf)
	}
}
