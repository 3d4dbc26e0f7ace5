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
	"path/filepath"
	"sync"
	"time"
)

// Phase enumerates the lifecycle states of a job.
type Phase string

// Valid transitions: NotStarted → Running on job start; Running →
// Running after every processed window; Running → Completed once all
// windows are consumed and results are persisted; Running → Failed on
// an unrecoverable error. Failed|Completed → NotStarted only by an
// explicit Reset.
const (
	NotStarted Phase = "not_started"
	Running    Phase = "running"
	Completed  Phase = "completed"
	Failed     Phase = "failed"
)

// Status is the externally visible record of a job's progress.
type Status struct {
	Phase        Phase    `json:"status"`
	StartedAt    string   `json:"started_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
	Progress     int      `json:"progress_pct"`
	CurrentStep  string   `json:"current_step,omitempty"`
	WindowsDone  int      `json:"windows_done"`
	TotalWindows int      `json:"total_windows"`
	ZonesSeen    int      `json:"zones_seen"`
	Errors       []string `json:"errors"`
	ResultsFile  string   `json:"results_file,omitempty"`
}

// A StatusFile durably persists job status as JSON so an external
// observer, or the process itself after a restart, sees accurate
// last-known progress. Every update rewrites the file wholesale
// through a temporary file and rename, so readers never observe a torn
// mix of old and new fields. Progress is monotonically non-decreasing
// within a phase.
type StatusFile struct {
	path string

	mx sync.Mutex
	s  Status
}

// NewStatusFile creates a status record persisted at path, initialized
// to NotStarted. Nothing is written until the first update.
func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path, s: Status{Phase: NotStarted, Errors: []string{}}}
}

// LoadStatus reads the last persisted status from path. A missing file
// yields a NotStarted record, so a fresh deployment needs no setup
// step.
func LoadStatus(path string) (*StatusFile, error) {
	sf := NewStatusFile(path)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return sf, nil
	} else if err != nil {
		return nil, fmt.Errorf("zonagg: reading status file %s: %v", path, err)
	}
	if err := json.Unmarshal(b, &sf.s); err != nil {
		return nil, fmt.Errorf("zonagg: parsing status file %s: %v", path, err)
	}
	if sf.s.Errors == nil {
		sf.s.Errors = []string{}
	}
	return sf, nil
}

// Status returns a copy of the current status.
func (sf *StatusFile) Status() Status {
	sf.mx.Lock()
	defer sf.mx.Unlock()
	s := sf.s
	s.Errors = append([]string{}, sf.s.Errors...)
	return s
}

// save persists the current status. Callers must hold sf.mx.
func (sf *StatusFile) save() error {
	sf.s.UpdatedAt = time.Now().Format(time.RFC3339)
	b, err := json.MarshalIndent(&sf.s, "", "  ")
	if err != nil {
		return fmt.Errorf("zonagg: encoding status: %v", err)
	}
	tmp := sf.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(sf.path), 0755); err != nil {
		return fmt.Errorf("zonagg: creating status directory: %v", err)
	}
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("zonagg: writing status file: %v", err)
	}
	if err := os.Rename(tmp, sf.path); err != nil {
		return fmt.Errorf("zonagg: replacing status file: %v", err)
	}
	return nil
}

// Start transitions the job to Running, recording the start timestamp
// and the total number of planned windows.
func (sf *StatusFile) Start(totalWindows int, step string) error {
	sf.mx.Lock()
	defer sf.mx.Unlock()
	sf.s.Phase = Running
	sf.s.StartedAt = time.Now().Format(time.RFC3339)
	sf.s.Progress = 0
	sf.s.CurrentStep = step
	sf.s.WindowsDone = 0
	sf.s.TotalWindows = totalWindows
	sf.s.ZonesSeen = 0
	return sf.save()
}

// Step records a new processing step without changing progress.
func (sf *StatusFile) Step(step string) error {
	sf.mx.Lock()
	defer sf.mx.Unlock()
	sf.s.CurrentStep = step
	return sf.save()
}

// Advance records one more processed window and the number of zones
// seen so far. Progress never decreases, even if workers report out of
// order.
func (sf *StatusFile) Advance(zonesSeen int) error {
	sf.mx.Lock()
	defer sf.mx.Unlock()
	sf.s.WindowsDone++
	if zonesSeen > sf.s.ZonesSeen {
		sf.s.ZonesSeen = zonesSeen
	}
	if sf.s.TotalWindows > 0 {
		if pct := sf.s.WindowsDone * 100 / sf.s.TotalWindows; pct > sf.s.Progress {
			sf.s.Progress = pct
		}
	}
	return sf.save()
}

// Complete transitions the job to Completed, recording where the
// persisted results live.
func (sf *StatusFile) Complete(zones int, resultsFile string) error {
	sf.mx.Lock()
	defer sf.mx.Unlock()
	sf.s.Phase = Completed
	sf.s.Progress = 100
	sf.s.CurrentStep = ""
	sf.s.ZonesSeen = zones
	sf.s.ResultsFile = resultsFile
	return sf.save()
}

// Fail transitions the job to Failed, appending err to the error list.
// Previously persisted output is left in place.
func (sf *StatusFile) Fail(err error) error {
	sf.mx.Lock()
	defer sf.mx.Unlock()
	sf.s.Phase = Failed
	sf.s.Errors = append(sf.s.Errors, err.Error())
	return sf.save()
}

// Reset forces a Completed or Failed job back to NotStarted, clearing
// the error list and progress. It is an explicit operator action and
// is never invoked by normal runs; resetting a Running job is refused.
func (sf *StatusFile) Reset() error {
	sf.mx.Lock()
	defer sf.mx.Unlock()
	if sf.s.Phase == Running {
		return fmt.Errorf("zonagg: cannot reset a running job")
	}
	sf.s = Status{Phase: NotStarted, Errors: []string{}}
	return sf.save()
}
