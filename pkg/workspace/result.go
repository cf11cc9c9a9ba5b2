package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// Status is the outcome of importing one unit.
type Status string

const (
	StatusImported Status = "imported"
	StatusExisting Status = "existing"
	StatusReplaced Status = "replaced"
	StatusFailed   Status = "failed"
)

// ImportResult is the outcome of bringing one unit into the workspace.
type ImportResult struct {
	Status Status
	// Path is the absolute location of the unit in the workspace.
	Path string
	// Err is set iff Status is StatusFailed.
	Err error
}

// Failed returns a failed result for path.
func Failed(path string, err error) ImportResult {
	return ImportResult{Status: StatusFailed, Path: path, Err: err}
}

// OK reports whether the import succeeded.
func (r ImportResult) OK() bool {
	return r.Status != StatusFailed
}

// Results maps each unit of a pass to its import result.
type Results map[Unit]ImportResult

// Restrict returns the entries whose unit is in units. Units without a
// result are omitted.
func (r Results) Restrict(units []Unit) Results {
	out := make(Results, len(units))
	for _, u := range units {
		if res, ok := r[u]; ok {
			out[u] = res
		}
	}
	return out
}

// Failed returns only the failed entries.
func (r Results) Failed() Results {
	out := make(Results)
	for u, res := range r {
		if !res.OK() {
			out[u] = res
		}
	}
	return out
}

// Err combines the errors of all failed entries, ordered by unit key.
func (r Results) Err() error {
	var err error
	for _, e := range r.Sorted() {
		if e.Result.Err != nil {
			err = multierr.Append(err, e.Result.Err)
		}
	}
	return err
}

// Counts tallies results by status.
func (r Results) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, res := range r {
		counts[res.Status]++
	}
	return counts
}

// Entry pairs a unit with its result.
type Entry struct {
	Unit   Unit
	Result ImportResult
}

// Sorted returns the entries ordered by unit key then source.
func (r Results) Sorted() []Entry {
	out := make([]Entry, 0, len(r))
	for u, res := range r {
		out = append(out, Entry{Unit: u, Result: res})
	}
	sort.Slice(out, func(i, j int) bool { return lessUnit(out[i].Unit, out[j].Unit) })
	return out
}

type jsonEntry struct {
	Unit   Unit   `json:"unit"`
	Status Status `json:"status"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MarshalJSON encodes results as an object keyed by Unit.Key(). Units that
// share a key get their source appended, then a counter, in sorted order.
func (r Results) MarshalJSON() ([]byte, error) {
	out := make(map[string]jsonEntry, len(r))
	for _, entry := range r.Sorted() {
		e := jsonEntry{Unit: entry.Unit, Status: entry.Result.Status, Path: entry.Result.Path}
		if entry.Result.Err != nil {
			e.Error = entry.Result.Err.Error()
		}
		key := entry.Unit.Key()
		if _, dup := out[key]; dup {
			key += "@" + entry.Unit.Source
		}
		for base, n := key, 2; ; n++ {
			if _, dup := out[key]; !dup {
				break
			}
			key = fmt.Sprintf("%s#%d", base, n)
		}
		out[key] = e
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes results written by MarshalJSON. Errors come back as
// plain messages.
func (r *Results) UnmarshalJSON(data []byte) error {
	var in map[string]jsonEntry
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Results, len(in))
	for _, e := range in {
		res := ImportResult{Status: e.Status, Path: e.Path}
		if e.Error != "" {
			res.Err = errors.New(e.Error)
		}
		out[e.Unit] = res
	}
	*r = out
	return nil
}

func lessUnit(a, b Unit) bool {
	if a.Key() != b.Key() {
		return a.Key() < b.Key()
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Content != b.Content {
		return a.Content < b.Content
	}
	if a.Encoding != b.Encoding {
		return a.Encoding < b.Encoding
	}
	return !a.Force && b.Force
}

func sortUnits(units []Unit) {
	sort.Slice(units, func(i, j int) bool { return lessUnit(units[i], units[j]) })
}
