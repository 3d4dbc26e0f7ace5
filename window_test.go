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

import "testing"

func TestBlockPlanTilesExactly(t *testing.T) {
	g := testGrid(t, 0, 0, 7, 5)
	for _, blockSize := range []int{1, 2, 3, 4, 7, 10} {
		plan, err := NewBlockPlan(g, blockSize)
		if err != nil {
			t.Fatal(err)
		}
		covered := make([]int, g.Nx*g.Ny)
		n := 0
		for {
			w, ok := plan.Next()
			if !ok {
				break
			}
			n++
			if !w.In(g) {
				t.Fatalf("block size %d: window %v escapes the grid", blockSize, w)
			}
			for r := w.Row0; r < w.Row0+w.Nrows; r++ {
				for c := w.Col0; c < w.Col0+w.Ncols; c++ {
					covered[r*g.Nx+c]++
				}
			}
		}
		if n != plan.TotalWindows() {
			t.Errorf("block size %d: got %d windows, TotalWindows says %d", blockSize, n, plan.TotalWindows())
		}
		for i, c := range covered {
			if c != 1 {
				t.Fatalf("block size %d: pixel %d covered %d times", blockSize, i, c)
			}
		}
	}
}

func TestBlockPlanTruncation(t *testing.T) {
	g := testGrid(t, 0, 0, 7, 5)
	plan, err := NewBlockPlan(g, 3)
	if err != nil {
		t.Fatal(err)
	}
	// 2 row blocks × 3 column blocks; last row block is 2 rows tall,
	// last column block is 1 column wide.
	if plan.TotalWindows() != 6 {
		t.Fatalf("got %d windows, want 6", plan.TotalWindows())
	}
	last := plan.Window(5)
	want := Window{Row0: 3, Col0: 6, Nrows: 2, Ncols: 1}
	if last != want {
		t.Errorf("last window is %v, want %v", last, want)
	}
}

func TestBlockPlanRestart(t *testing.T) {
	g := testGrid(t, 0, 0, 7, 5)
	plan, err := NewBlockPlan(g, 3)
	if err != nil {
		t.Fatal(err)
	}
	var first []Window
	for {
		w, ok := plan.Next()
		if !ok {
			break
		}
		first = append(first, w)
	}
	plan.Reset()
	for i := range first {
		w, ok := plan.Next()
		if !ok || w != first[i] {
			t.Fatalf("replanned window %d is %v, want %v", i, w, first[i])
		}
	}
	plan.Seek(4)
	if w, ok := plan.Next(); !ok || w != first[4] {
		t.Errorf("after Seek(4) got %v, want %v", w, first[4])
	}
}

func TestWindowTranslateAndIn(t *testing.T) {
	g := testGrid(t, 0, 0, 10, 10)
	w := Window{Row0: 2, Col0: 3, Nrows: 4, Ncols: 4}
	if !w.In(g) {
		t.Error("window should be in grid")
	}
	if tw := w.Translate(6, 0); tw.In(g) {
		t.Errorf("translated window %v should escape the grid", tw)
	}
	if tw := w.Translate(-3, 0); tw.In(g) {
		t.Errorf("translated window %v should escape the grid", tw)
	}
	if tw := w.Translate(4, 3); !tw.In(g) {
		t.Errorf("translated window %v should fit the grid", tw)
	}
}

func TestNewBlockPlanInvalid(t *testing.T) {
	g := testGrid(t, 0, 0, 7, 5)
	if _, err := NewBlockPlan(g, 0); err == nil {
		t.Error("expected error for block size 0")
	}
}
