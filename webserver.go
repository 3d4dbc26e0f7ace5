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
	"net/http"
	"os"
)

// StatusHandler returns an HTTP handler exposing the persisted job
// status at /api/status and the exported result document at
// /api/results. Both are served straight from the files on disk, which
// are replaced wholesale on update, so a response is never a torn mix
// of old and new state. The handler is read-only; it never mutates job
// state.
func StatusHandler(statusPath, resultsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		serveJSONFile(w, r, statusPath)
	})
	mux.HandleFunc("/api/results", func(w http.ResponseWriter, r *http.Request) {
		serveJSONFile(w, r, resultsPath)
	})
	return mux
}

func serveJSONFile(w http.ResponseWriter, r *http.Request, path string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		http.Error(w, "not available yet", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}
