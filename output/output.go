// Package output renders rewrite reports for terminals, machines and pull
// request comments.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/c360studio/testtag/processor/rewriter"
	"github.com/c360studio/testtag/recipe"
)

// Format names a report renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatMarkdown}
}

// IsValid reports whether f is a supported format.
func (f Format) IsValid() bool {
	for _, known := range Formats() {
		if f == known {
			return true
		}
	}
	return false
}

// Options control rendering.
type Options struct {
	// Color enables ANSI colors in text output.
	Color bool
	// Diff includes per-file diffs when the report carries them.
	Diff bool
	// Verbose lists unchanged files too.
	Verbose bool
}

// Renderer writes a report.
type Renderer interface {
	Render(w io.Writer, report *rewriter.Report) error
}

// New returns the renderer for format.
func New(format Format, opts Options) (Renderer, error) {
	switch format {
	case FormatText, "":
		return NewTextRenderer(opts), nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatMarkdown:
		return &MarkdownRenderer{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Summary is the aggregate view of a report.
type Summary struct {
	Files        int            `json:"files"`
	Changed      int            `json:"changed"`
	Failed       int            `json:"failed"`
	ImportsAdded int            `json:"imports_added"`
	Tags         map[string]int `json:"tags"`
}

// Summarize aggregates report.
func Summarize(report *rewriter.Report) Summary {
	s := Summary{
		Files:        len(report.Files),
		Changed:      report.Changed(),
		Failed:       len(report.Failed()),
		ImportsAdded: report.ImportsAdded(),
		Tags:         make(map[string]int),
	}
	for tag, n := range report.TagCounts() {
		s.Tags[string(tag)] = n
	}
	return s
}

// tagBreakdown formats tag counts as "unit: 2, integration: 1" in a stable order.
func tagBreakdown(tags map[string]int) string {
	order := map[string]int{string(recipe.TagUnit): 0, string(recipe.TagIntegration): 1}
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := order[names[i]]
		oj, jok := order[names[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return names[i] < names[j]
	})

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %d", name, tags[name])
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
