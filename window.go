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

import "fmt"

// A Window is a rectangle of contiguous rows and columns in one grid's
// pixel space.
type Window struct {
	Row0, Col0   int // indices of the top-left pixel
	Nrows, Ncols int
}

// Translate returns w shifted by the given number of rows and columns,
// e.g. to express a window planned on one grid in the pixel frame of
// another grid that shares its lattice.
func (w Window) Translate(rowDelta, colDelta int) Window {
	return Window{Row0: w.Row0 + rowDelta, Col0: w.Col0 + colDelta, Nrows: w.Nrows, Ncols: w.Ncols}
}

// In reports whether w lies fully inside grid g.
func (w Window) In(g *GridDef) bool {
	return w.Row0 >= 0 && w.Col0 >= 0 &&
		w.Row0+w.Nrows <= g.Ny && w.Col0+w.Ncols <= g.Nx
}

func (w Window) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d]", w.Row0, w.Row0+w.Nrows, w.Col0, w.Col0+w.Ncols)
}

// A BlockPlan partitions a grid into fixed-size rectangular windows in
// row-major order, truncating blocks in the last row and column at the
// grid edge rather than padding them. Every pixel of the grid is
// covered by exactly one window. The sequence is finite, lazy, and
// deterministic, so a restarted job re-plans the identical sequence.
//
// The block size trades memory for throughput only; aggregate results
// are identical for any block size.
type BlockPlan struct {
	grid                   *GridDef
	blockSize              int
	nRowBlocks, nColBlocks int
	next                   int
}

// NewBlockPlan plans windows of blockSize×blockSize pixels over grid.
func NewBlockPlan(grid *GridDef, blockSize int) (*BlockPlan, error) {
	if blockSize < 1 {
		return nil, fmt.Errorf("zonagg: block size must be positive but is %d", blockSize)
	}
	return &BlockPlan{
		grid:       grid,
		blockSize:  blockSize,
		nRowBlocks: (grid.Ny + blockSize - 1) / blockSize,
		nColBlocks: (grid.Nx + blockSize - 1) / blockSize,
	}, nil
}

// TotalWindows returns the number of windows in the plan.
func (p *BlockPlan) TotalWindows() int { return p.nRowBlocks * p.nColBlocks }

// Window returns the i'th window of the plan.
func (p *BlockPlan) Window(i int) Window {
	row0 := (i / p.nColBlocks) * p.blockSize
	col0 := (i % p.nColBlocks) * p.blockSize
	w := Window{Row0: row0, Col0: col0, Nrows: p.blockSize, Ncols: p.blockSize}
	if row0+w.Nrows > p.grid.Ny {
		w.Nrows = p.grid.Ny - row0
	}
	if col0+w.Ncols > p.grid.Nx {
		w.Ncols = p.grid.Nx - col0
	}
	return w
}

// Next returns the next window in the sequence. ok is false once the
// plan is exhausted.
func (p *BlockPlan) Next() (w Window, ok bool) {
	if p.next >= p.TotalWindows() {
		return Window{}, false
	}
	w = p.Window(p.next)
	p.next++
	return w, true
}

// Seek positions the plan so that the next call to Next returns
// window i, allowing a restarted job to skip already-processed windows.
func (p *BlockPlan) Seek(i int) { p.next = i }

// Reset rewinds the plan to its first window.
func (p *BlockPlan) Reset() { p.next = 0 }
