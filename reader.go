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
	"errors"
	"fmt"

	"github.com/ctessum/sparse"
)

// ErrOutOfBounds is returned by window reads when the requested window
// is not fully contained in the raster. It marks missing coverage
// rather than a failure: callers skip the raster's contribution for
// the window instead of aborting.
var ErrOutOfBounds = errors.New("zonagg: window out of raster bounds")

// A WindowReader supplies measurement pixel values one window at a
// time. Returned arrays have shape [w.Nrows, w.Ncols] and hold NaN for
// invalid (no-data) pixels. Reads are idempotent: reading a window
// twice yields the same values.
type WindowReader interface {
	Grid() *GridDef
	ReadWindow(w Window) (*sparse.DenseArray, error)
}

// A ZoneReader supplies zone-id pixel values one window at a time.
// Ids ≤ 0 mean "no zone."
type ZoneReader interface {
	Grid() *GridDef
	ReadZoneWindow(w Window) (*sparse.DenseArrayInt, error)
}

// A MemGrid is an in-memory measurement raster.
type MemGrid struct {
	def  *GridDef
	data *sparse.DenseArray
}

// NewMemGrid creates a measurement raster from data, which must have
// shape [def.Ny, def.Nx].
func NewMemGrid(def *GridDef, data *sparse.DenseArray) (*MemGrid, error) {
	if len(data.Shape) != 2 || data.Shape[0] != def.Ny || data.Shape[1] != def.Nx {
		return nil, fmt.Errorf("zonagg: grid data shape %v does not match grid dimensions (%d, %d)",
			data.Shape, def.Ny, def.Nx)
	}
	return &MemGrid{def: def, data: data}, nil
}

// Grid returns the raster's grid descriptor.
func (m *MemGrid) Grid() *GridDef { return m.def }

// ReadWindow implements WindowReader.
func (m *MemGrid) ReadWindow(w Window) (*sparse.DenseArray, error) {
	if !w.In(m.def) {
		return nil, ErrOutOfBounds
	}
	out := sparse.ZerosDense(w.Nrows, w.Ncols)
	for r := 0; r < w.Nrows; r++ {
		for c := 0; c < w.Ncols; c++ {
			out.Set(m.data.Get(w.Row0+r, w.Col0+c), r, c)
		}
	}
	return out, nil
}

// A MemZoneGrid is an in-memory zone-id raster.
type MemZoneGrid struct {
	def  *GridDef
	data *sparse.DenseArrayInt
}

// NewMemZoneGrid creates a zone-id raster from data, which must have
// shape [def.Ny, def.Nx].
func NewMemZoneGrid(def *GridDef, data *sparse.DenseArrayInt) (*MemZoneGrid, error) {
	if len(data.Shape) != 2 || data.Shape[0] != def.Ny || data.Shape[1] != def.Nx {
		return nil, fmt.Errorf("zonagg: zone data shape %v does not match grid dimensions (%d, %d)",
			data.Shape, def.Ny, def.Nx)
	}
	return &MemZoneGrid{def: def, data: data}, nil
}

// Grid returns the raster's grid descriptor.
func (m *MemZoneGrid) Grid() *GridDef { return m.def }

// ReadZoneWindow implements ZoneReader.
func (m *MemZoneGrid) ReadZoneWindow(w Window) (*sparse.DenseArrayInt, error) {
	if !w.In(m.def) {
		return nil, ErrOutOfBounds
	}
	out := sparse.ZerosDenseInt(w.Nrows, w.Ncols)
	for r := 0; r < w.Nrows; r++ {
		for c := 0; c < w.Ncols; c++ {
			out.Set(m.data.Get(w.Row0+r, w.Col0+c), r, c)
		}
	}
	return out, nil
}
