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

// Package zonagg aggregates gridded geospatial measurements into
// per-administrative-zone statistics. Rasters are streamed in
// bounded-memory windows, reconciled onto a shared pixel lattice, and
// folded into running per-zone totals, with durable job-status
// reporting for multi-hour runs.
package zonagg

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// alignTolerance is the maximum fraction of a pixel by which two grids
// may deviate from a shared lattice before alignment fails.
const alignTolerance = 1e-4

// GridDef describes the pixel lattice of a regular raster: the outer
// corner of pixel (0, 0), the pixel size, and the raster dimensions.
// Dy is negative for north-up rasters, following the usual
// geotransform convention, so that row indices increase southward.
type GridDef struct {
	X0, Y0 float64 // coordinates of the outer corner of pixel (0, 0)
	Dx, Dy float64 // pixel size; Dy < 0 when rows run north to south
	Nx, Ny int     // raster width and height [pixels]
}

// NewGridDef creates a grid descriptor, checking that the pixel size
// and dimensions are usable.
func NewGridDef(x0, y0, dx, dy float64, nx, ny int) (*GridDef, error) {
	if dx == 0 || dy == 0 {
		return nil, fmt.Errorf("zonagg: grid pixel size must be nonzero but is (%g, %g)", dx, dy)
	}
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("zonagg: grid dimensions must be positive but are (%d, %d)", nx, ny)
	}
	return &GridDef{X0: x0, Y0: y0, Dx: dx, Dy: dy, Nx: nx, Ny: ny}, nil
}

// PixelToCoord returns the coordinates of the outer corner of the pixel
// at the given row and column. It is the inverse of CoordToPixel up to
// pixel-size rounding.
func (g *GridDef) PixelToCoord(row, col int) (x, y float64) {
	return g.X0 + float64(col)*g.Dx, g.Y0 + float64(row)*g.Dy
}

// CoordToPixel returns the row and column of the pixel whose outer
// corner is nearest to (x, y).
func (g *GridDef) CoordToPixel(x, y float64) (row, col int) {
	col = int(math.Round((x - g.X0) / g.Dx))
	row = int(math.Round((y - g.Y0) / g.Dy))
	return
}

// Bounds returns the geographic extent of the grid.
func (g *GridDef) Bounds() *geom.Bounds {
	x1 := g.X0 + float64(g.Nx)*g.Dx
	y1 := g.Y0 + float64(g.Ny)*g.Dy
	return &geom.Bounds{
		Min: geom.Point{X: math.Min(g.X0, x1), Y: math.Min(g.Y0, y1)},
		Max: geom.Point{X: math.Max(g.X0, x1), Y: math.Max(g.Y0, y1)},
	}
}

// A MisalignedGridError indicates that two grids share a pixel size but
// their origins are not separated by a whole number of pixels, so pixel
// indices in one grid cannot be translated to the other without
// resampling. RowOffset and ColOffset hold the non-integral offsets
// that were computed.
type MisalignedGridError struct {
	RowOffset, ColOffset float64
}

func (e MisalignedGridError) Error() string {
	return fmt.Sprintf("zonagg: grids are misaligned: pixel offset (%g, %g) is not integral",
		e.RowOffset, e.ColOffset)
}

// AlignOffset returns the integer pixel offset that translates pixel
// indices in other to pixel indices in g, such that
// other.PixelToCoord(r, c) equals g.PixelToCoord(r+rowDelta, c+colDelta).
// The grids must have equal pixel sizes and origins separated by a whole
// number of pixels; otherwise a MisalignedGridError is returned. Grids
// are never resampled, only offset.
func (g *GridDef) AlignOffset(other *GridDef) (rowDelta, colDelta int, err error) {
	if math.Abs(other.Dx-g.Dx) > alignTolerance*math.Abs(g.Dx) ||
		math.Abs(other.Dy-g.Dy) > alignTolerance*math.Abs(g.Dy) {
		return 0, 0, fmt.Errorf("zonagg: grid pixel sizes differ: (%g, %g) != (%g, %g)",
			other.Dx, other.Dy, g.Dx, g.Dy)
	}
	fCol := (other.X0 - g.X0) / g.Dx
	fRow := (other.Y0 - g.Y0) / g.Dy
	colDelta = int(math.Round(fCol))
	rowDelta = int(math.Round(fRow))
	if math.Abs(fCol-float64(colDelta)) > alignTolerance ||
		math.Abs(fRow-float64(rowDelta)) > alignTolerance {
		return 0, 0, MisalignedGridError{RowOffset: fRow, ColOffset: fCol}
	}
	return rowDelta, colDelta, nil
}
