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
	"strconv"
	"strings"

	"github.com/ctessum/geom/encoding/shp"
)

// A ZoneLookup maps zone ids to human-readable names and parent-region
// labels. It only decorates output records; the aggregation itself
// never consults it.
type ZoneLookup struct {
	Names   map[int]string
	Regions map[int]string
}

// Name returns the display name for a zone, or a placeholder when the
// zone is not in the lookup.
func (l *ZoneLookup) Name(id int) string {
	if l != nil {
		if n, ok := l.Names[id]; ok {
			return n
		}
	}
	return fmt.Sprintf("zone-%d", id)
}

// Region returns the parent-region label for a zone, or "" when
// unknown.
func (l *ZoneLookup) Region(id int) string {
	if l == nil {
		return ""
	}
	return l.Regions[id]
}

// zoneLookupFile is the on-disk JSON shape:
// {"names": {"10101": "…"}, "regions": {"10101": "…"}}. The key
// "states" is accepted as a synonym for "regions".
type zoneLookupFile struct {
	Names   map[string]string `json:"names"`
	Regions map[string]string `json:"regions"`
	States  map[string]string `json:"states"`
}

// ReadZoneLookup reads a zone lookup table from a JSON file.
func ReadZoneLookup(path string) (*ZoneLookup, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, MissingInputError{Path: path, Err: err}
	}
	var f zoneLookupFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("zonagg: parsing zone lookup %s: %v", path, err)
	}
	if f.Regions == nil {
		f.Regions = f.States
	}
	l := &ZoneLookup{Names: make(map[int]string), Regions: make(map[int]string)}
	for k, v := range f.Names {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("zonagg: zone lookup %s: invalid zone id %q", path, k)
		}
		l.Names[id] = v
	}
	for k, v := range f.Regions {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("zonagg: zone lookup %s: invalid zone id %q", path, k)
		}
		l.Regions[id] = v
	}
	return l, nil
}

// ReadZoneLookupShp reads a zone lookup table from the attribute table
// of the zone polygon shapefile: idField holds the numeric zone id,
// nameField the display name, and regionField (optional, "" to skip)
// the parent-region label. Rows whose id field is empty or
// non-positive are skipped.
func ReadZoneLookupShp(path, idField, nameField, regionField string) (*ZoneLookup, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, MissingInputError{Path: path, Err: err}
	}
	defer d.Close()

	fieldNames := []string{idField, nameField}
	if regionField != "" {
		fieldNames = append(fieldNames, regionField)
	}
	l := &ZoneLookup{Names: make(map[int]string), Regions: make(map[int]string)}
	for {
		_, fields, more := d.DecodeRowFields(fieldNames...)
		if !more {
			break
		}
		idStr := trimAttr(fields[idField])
		if idStr == "" {
			continue
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("zonagg: zone lookup %s: field %s value %q is not an integer",
				path, idField, idStr)
		}
		if id <= 0 {
			continue
		}
		l.Names[id] = trimAttr(fields[nameField])
		if regionField != "" {
			l.Regions[id] = trimAttr(fields[regionField])
		}
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("zonagg: reading zone lookup %s: %v", path, err)
	}
	return l, nil
}

// trimAttr strips the space and NUL padding that DBF attribute values
// carry.
func trimAttr(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}
