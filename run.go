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
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ctessum/sparse"
)

const (
	// DefaultBlockSize is the default window edge length [pixels].
	DefaultBlockSize = 2000

	// DefaultReadRetries is the default number of times a failed
	// block read is retried before the job fails.
	DefaultReadRetries = 3
)

// A Layer is one measurement raster participating in a job, identified
// by name in the job's output.
type Layer struct {
	Name   string
	Reader WindowReader

	// pixel offset translating zone-grid windows into this layer's
	// pixel frame, set by NewJob.
	rowDelta, colDelta int
}

// A Job streams a zone-id grid and one or more measurement grids in
// windows and folds them into per-zone running totals, persisting
// progress to a status file after every window.
type Job struct {
	zones  ZoneReader
	layers []Layer
	status *StatusFile

	// BlockSize is the window edge length [pixels]. It bounds peak
	// memory and has no effect on results.
	BlockSize int

	// Workers is the number of goroutines folding windows. Each worker
	// folds into its own accumulator shard; shards are merged after all
	// workers finish. Values below 2 select the sequential path.
	Workers int

	// ReadRetries bounds how many times a failed block read is retried
	// before the job fails.
	ReadRetries uint64
}

// NewJob validates the inputs and reconciles each measurement grid
// onto the zone grid's pixel lattice. Grids that share a resolution
// but no integral pixel offset cause a MisalignedGridError here,
// before any aggregation starts.
func NewJob(zones ZoneReader, status *StatusFile, layers ...Layer) (*Job, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("zonagg: job needs at least one measurement layer")
	}
	seen := make(map[string]struct{})
	for i := range layers {
		if layers[i].Name == "" {
			return nil, fmt.Errorf("zonagg: layer %d has no name", i)
		}
		if _, ok := seen[layers[i].Name]; ok {
			return nil, fmt.Errorf("zonagg: duplicate layer name %q", layers[i].Name)
		}
		seen[layers[i].Name] = struct{}{}
		rd, cd, err := layers[i].Reader.Grid().AlignOffset(zones.Grid())
		if err != nil {
			return nil, fmt.Errorf("zonagg: aligning layer %s to zone grid: %w", layers[i].Name, err)
		}
		layers[i].rowDelta, layers[i].colDelta = rd, cd
		// A layer whose extent is disjoint from the zone grid would
		// silently contribute nothing to every window.
		if !layers[i].Reader.Grid().Bounds().Overlaps(zones.Grid().Bounds()) {
			return nil, fmt.Errorf("zonagg: layer %s extent %v does not overlap zone grid extent %v",
				layers[i].Name, layers[i].Reader.Grid().Bounds(), zones.Grid().Bounds())
		}
	}
	return &Job{
		zones:       zones,
		layers:      layers,
		status:      status,
		BlockSize:   DefaultBlockSize,
		Workers:     1,
		ReadRetries: DefaultReadRetries,
	}, nil
}

// Run processes every planned window and returns the accumulated
// per-zone totals. The status file is transitioned to Running at the
// start and updated after each window; on any error, including
// cancellation of ctx, the status is transitioned to Failed and the
// error returned. Run leaves the status in Running when it returns
// successfully: the caller marks the job Completed once the projected
// results are persisted.
func (j *Job) Run(ctx context.Context) (*Accumulator, error) {
	blockSize := j.BlockSize
	if blockSize < 1 {
		blockSize = DefaultBlockSize
	}
	plan, err := NewBlockPlan(j.zones.Grid(), blockSize)
	if err != nil {
		return nil, err
	}
	if err := j.status.Start(plan.TotalWindows(), "processing_blocks"); err != nil {
		return nil, err
	}

	names := make([]string, len(j.layers))
	for i, l := range j.layers {
		names[i] = l.Name
	}

	var acc *Accumulator
	if j.Workers < 2 {
		acc = NewAccumulator(names...)
		err = j.fold(ctx, plan, acc, 0, 1)
	} else {
		acc, err = j.foldParallel(ctx, plan, names)
	}
	if err != nil {
		if serr := j.status.Fail(err); serr != nil {
			log.Printf("zonagg: recording failure: %v", serr)
		}
		return nil, err
	}
	return acc, nil
}

// fold processes windows start, start+stride, start+2*stride, … of
// plan, folding them into acc.
func (j *Job) fold(ctx context.Context, plan *BlockPlan, acc *Accumulator, start, stride int) error {
	windows := make([]*sparse.DenseArray, len(j.layers))
	for i := start; i < plan.TotalWindows(); i += stride {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("zonagg: job canceled: %v", err)
		}
		w := plan.Window(i)

		var zw *sparse.DenseArrayInt
		err := j.retryRead(func() error {
			var err error
			zw, err = j.zones.ReadZoneWindow(w)
			return err
		})
		if err != nil {
			return fmt.Errorf("zonagg: reading zone window %v: %w", w, err)
		}

		for li, l := range j.layers {
			tw := w.Translate(l.rowDelta, l.colDelta)
			var lw *sparse.DenseArray
			err := j.retryRead(func() error {
				var err error
				lw, err = l.Reader.ReadWindow(tw)
				return err
			})
			switch err {
			case nil:
				windows[li] = lw
			case ErrOutOfBounds:
				// No coverage from this layer here; other layers
				// still contribute.
				windows[li] = nil
			default:
				return fmt.Errorf("zonagg: reading layer %s window %v: %w", l.Name, tw, err)
			}
		}

		if err := acc.Fold(zw, windows); err != nil {
			return err
		}
		if err := j.status.Advance(acc.NumZones()); err != nil {
			return err
		}
	}
	return nil
}

// foldParallel distributes the planned windows across j.Workers
// goroutines, each folding into its own accumulator shard, and merges
// the shards. Merging sums with sums is associative and commutative,
// so the result is identical to a sequential pass.
func (j *Job) foldParallel(ctx context.Context, plan *BlockPlan, names []string) (*Accumulator, error) {
	shards := make([]*Accumulator, j.Workers)
	errs := make([]error, j.Workers)
	var wg sync.WaitGroup
	for k := 0; k < j.Workers; k++ {
		shards[k] = NewAccumulator(names...)
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			errs[k] = j.fold(ctx, plan, shards[k], k, j.Workers)
		}(k)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	acc := shards[0]
	for _, shard := range shards[1:] {
		if err := acc.Merge(shard); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// retryRead runs read, retrying transient failures with exponential
// backoff up to j.ReadRetries times. Out-of-bounds results are not
// failures and are returned immediately.
func (j *Job) retryRead(read func() error) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), j.ReadRetries)
	return backoff.RetryNotify(
		func() error {
			err := read()
			if err == ErrOutOfBounds {
				return backoff.Permanent(err)
			}
			return err
		},
		b,
		func(err error, d time.Duration) {
			log.Printf("zonagg: block read failed (retrying in %v): %v", d, err)
		},
	)
}
