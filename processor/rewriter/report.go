package rewriter

import (
	"time"

	"github.com/c360studio/testtag/recipe"
)

// Mode selects whether a run writes files.
type Mode string

const (
	// ModeApply writes rewritten files in place.
	ModeApply Mode = "apply"
	// ModeDryRun computes changes without writing.
	ModeDryRun Mode = "dry-run"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeApply || m == ModeDryRun
}

// TagResult is one inserted tag annotation.
type TagResult struct {
	Class string     `json:"class"`
	Line  int        `json:"line,omitempty"`
	Tag   recipe.Tag `json:"tag"`
}

// FileResult is the outcome for a single file.
type FileResult struct {
	Path        string        `json:"path"`
	Changed     bool          `json:"changed"`
	Tags        []TagResult   `json:"tags,omitempty"`
	ImportAdded bool          `json:"import_added,omitempty"`
	Diff        string        `json:"diff,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`

	Err error `json:"-"`
}

// Report summarizes a run.
type Report struct {
	RunID     string        `json:"run_id"`
	Mode      Mode          `json:"mode"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Files     []FileResult  `json:"files"`
}

// Changed returns the number of files that were (or would be) rewritten.
func (r *Report) Changed() int {
	n := 0
	for _, f := range r.Files {
		if f.Changed {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// TagCounts returns the number of inserted tags per value.
func (r *Report) TagCounts() map[recipe.Tag]int {
	counts := make(map[recipe.Tag]int)
	for _, f := range r.Files {
		for _, t := range f.Tags {
			counts[t.Tag]++
		}
	}
	return counts
}

// ImportsAdded returns the number of files that gained the tag import.
func (r *Report) ImportsAdded() int {
	n := 0
	for _, f := range r.Files {
		if f.ImportAdded {
			n++
		}
	}
	return n
}
