package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/c360studio/testtag/processor/rewriter"
	"github.com/c360studio/testtag/recipe"
)

// TextRenderer writes a human-readable report.
type TextRenderer struct {
	opts Options

	added   *color.Color
	removed *color.Color
	changed *color.Color
	failed  *color.Color
	hunk    *color.Color
	faint   *color.Color
}

// NewTextRenderer creates a text renderer.
func NewTextRenderer(opts Options) *TextRenderer {
	r := &TextRenderer{
		opts:    opts,
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		changed: color.New(color.FgYellow),
		failed:  color.New(color.FgRed, color.Bold),
		hunk:    color.New(color.FgCyan),
		faint:   color.New(color.Faint),
	}
	for _, c := range []*color.Color{r.added, r.removed, r.changed, r.failed, r.hunk, r.faint} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Render implements Renderer.
func (r *TextRenderer) Render(w io.Writer, report *rewriter.Report) error {
	verb := "would tag"
	if report.Mode == rewriter.ModeApply {
		verb = "tagged"
	}

	for _, f := range report.Files {
		switch {
		case f.Err != nil || f.Error != "":
			msg := f.Error
			if f.Err != nil {
				msg = f.Err.Error()
			}
			r.failed.Fprintf(w, "✗ %s: %s\n", f.Path, msg)
		case f.Changed:
			r.changed.Fprintf(w, "~ %s", f.Path)
			r.faint.Fprintf(w, " (%s)\n", verb)
			for _, t := range f.Tags {
				r.added.Fprintf(w, "    + %s", recipe.AnnotationInsertion{Tag: t.Tag}.Text())
				fmt.Fprintf(w, " %s", t.Class)
				if t.Line > 0 {
					r.faint.Fprintf(w, " line %d", t.Line)
				}
				fmt.Fprintln(w)
			}
			if f.ImportAdded {
				r.added.Fprintf(w, "    + import %s\n", recipe.ImportTag)
			}
			if r.opts.Diff && f.Diff != "" {
				r.writeDiff(w, f.Diff)
			}
		case r.opts.Verbose:
			r.faint.Fprintf(w, "  %s\n", f.Path)
		}
	}

	s := Summarize(report)
	fmt.Fprintf(w, "\n%s scanned, %s %s", plural(s.Files, "file"), plural(s.Changed, "file"), verb)
	if len(s.Tags) > 0 {
		fmt.Fprintf(w, " (%s)", tagBreakdown(s.Tags))
	}
	fmt.Fprintf(w, ", %s added", plural(s.ImportsAdded, "import"))
	if s.Failed > 0 {
		fmt.Fprint(w, ", ")
		r.failed.Fprintf(w, "%d failed", s.Failed)
	}
	_, err := fmt.Fprintf(w, " in %s\n", report.Duration.Round(time.Millisecond))
	return err
}

func (r *TextRenderer) writeDiff(w io.Writer, diff string) {
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			r.faint.Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			r.hunk.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			r.added.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			r.removed.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}
