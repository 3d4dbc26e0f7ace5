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
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
)

const (
	testFill     = -9999.0
	testZoneFill = -1
)

// writeTestCOARDS writes a COARDS NetCDF file holding one [lat, lon]
// variable v on a grid with upper-left corner (x0, y0) and pixel size
// (dx, dy). data is row-major with ny*nx elements; when zone is true
// the variable is stored as int32, otherwise float32 with a fill
// value.
func writeTestCOARDS(t *testing.T, path, v string, x0, y0, dx, dy float64, nx, ny int, data []float64, zone bool) {
	t.Helper()
	if len(data) != nx*ny {
		t.Fatalf("data has %d elements for a %dx%d grid", len(data), ny, nx)
	}

	h := cdf.NewHeader([]string{"lat", "lon"}, []int{ny, nx})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	if zone {
		h.AddVariable(v, []string{"lat", "lon"}, []int32{0})
		h.AddAttribute(v, "_FillValue", []int32{testZoneFill})
	} else {
		h.AddVariable(v, []string{"lat", "lon"}, []float32{0})
		h.AddAttribute(v, "_FillValue", []float32{testFill})
	}
	h.Define()
	for _, err := range h.Check() {
		t.Fatal(err)
	}

	ff, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}

	// Pixel-center coordinates.
	lats := make([]float64, ny)
	for i := range lats {
		lats[i] = y0 + dy/2 + float64(i)*dy
	}
	lons := make([]float64, nx)
	for i := range lons {
		lons[i] = x0 + dx/2 + float64(i)*dx
	}
	for _, cv := range []struct {
		name string
		vals []float64
	}{{"lat", lats}, {"lon", lons}} {
		w := f.Writer(cv.name, []int{0}, []int{len(cv.vals)})
		if _, err := w.Write(cv.vals); err != nil {
			t.Fatal(err)
		}
	}

	w := f.Writer(v, []int{0, 0}, f.Header.Lengths(v))
	if zone {
		vals := make([]int32, len(data))
		for i, d := range data {
			vals[i] = int32(d)
		}
		if _, err := w.Write(vals); err != nil {
			t.Fatal(err)
		}
	} else {
		vals := make([]float32, len(data))
		for i, d := range data {
			vals[i] = float32(d)
		}
		if _, err := w.Write(vals); err != nil {
			t.Fatal(err)
		}
	}
}

func TestOpenCOARDSRaster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.nc")
	data := make([]float64, 4*5)
	for r := 0; r < 4; r++ {
		for c := 0; c < 5; c++ {
			data[r*5+c] = float64(r*10 + c)
		}
	}
	data[1*5+2] = testFill
	writeTestCOARDS(t, path, "loss", 0, 1, 0.25, -0.25, 5, 4, data, false)

	r, err := OpenCOARDSRaster(path, "loss")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	g := r.Grid()
	if g.Nx != 5 || g.Ny != 4 {
		t.Fatalf("got grid %dx%d, want 5x4", g.Nx, g.Ny)
	}
	if different(g.X0, 0, testTolerance) || different(g.Y0, 1, testTolerance) ||
		different(g.Dx, 0.25, testTolerance) || different(g.Dy, -0.25, testTolerance) {
		t.Errorf("got grid origin (%g, %g) pixel (%g, %g)", g.X0, g.Y0, g.Dx, g.Dy)
	}

	t.Run("full window", func(t *testing.T) {
		w, err := r.ReadWindow(Window{Row0: 0, Col0: 0, Nrows: 4, Ncols: 5})
		if err != nil {
			t.Fatal(err)
		}
		for i, want := range data {
			got := w.Elements[i]
			if want == testFill {
				if !math.IsNaN(got) {
					t.Errorf("element %d: got %g, want NaN for fill value", i, got)
				}
				continue
			}
			if different(got, want, testTolerance) {
				t.Errorf("element %d: got %g, want %g", i, got, want)
			}
		}
	})

	t.Run("interior window", func(t *testing.T) {
		win := Window{Row0: 1, Col0: 1, Nrows: 2, Ncols: 3}
		w, err := r.ReadWindow(win)
		if err != nil {
			t.Fatal(err)
		}
		if w.Shape[0] != 2 || w.Shape[1] != 3 {
			t.Fatalf("got shape %v, want [2 3]", w.Shape)
		}
		if got := w.Get(1, 2); different(got, 23, testTolerance) {
			t.Errorf("pixel (2, 3): got %g, want 23", got)
		}
		if got := w.Get(0, 1); !math.IsNaN(got) {
			t.Errorf("pixel (1, 2): got %g, want NaN", got)
		}
	})

	t.Run("idempotent reads", func(t *testing.T) {
		win := Window{Row0: 2, Col0: 0, Nrows: 2, Ncols: 5}
		a, err := r.ReadWindow(win)
		if err != nil {
			t.Fatal(err)
		}
		b, err := r.ReadWindow(win)
		if err != nil {
			t.Fatal(err)
		}
		for i := range a.Elements {
			if different(a.Elements[i], b.Elements[i], testTolerance) {
				t.Fatalf("element %d differs between reads: %g, %g", i, a.Elements[i], b.Elements[i])
			}
		}
	})

	t.Run("out of bounds", func(t *testing.T) {
		if _, err := r.ReadWindow(Window{Row0: 3, Col0: 0, Nrows: 2, Ncols: 5}); err != ErrOutOfBounds {
			t.Errorf("got %v, want ErrOutOfBounds", err)
		}
	})
}

func TestOpenCOARDSRasterMissing(t *testing.T) {
	_, err := OpenCOARDSRaster(filepath.Join(t.TempDir(), "absent.nc"), "loss")
	if _, ok := err.(MissingInputError); !ok {
		t.Errorf("got %T (%v), want MissingInputError", err, err)
	}
}

func TestOpenCOARDSRasterBadDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.nc")
	writeTestCOARDS(t, path, "loss", 0, 1, 0.25, -0.25, 5, 4, make([]float64, 20), false)
	if _, err := OpenCOARDSRaster(path, "lat"); err == nil {
		t.Error("expected error opening a 1-dimensional variable")
	}
	if _, err := OpenCOARDSRaster(path, "nonexistent"); err == nil {
		t.Error("expected error opening a missing variable")
	}
}

func TestCOARDSZoneRaster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.nc")
	data := []float64{
		1, 1, 2,
		testZoneFill, 2, 2,
	}
	writeTestCOARDS(t, path, "zones", 0, 1, 0.5, -0.5, 3, 2, data, true)

	z, err := OpenCOARDSZoneRaster(path, "zones")
	if err != nil {
		t.Fatal(err)
	}
	defer z.Close()

	w, err := z.ReadZoneWindow(Window{Row0: 0, Col0: 0, Nrows: 2, Ncols: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 1, 2, 0, 2, 2}
	for i, wv := range want {
		if w.Elements[i] != wv {
			t.Errorf("element %d: got %d, want %d", i, w.Elements[i], wv)
		}
	}
}
