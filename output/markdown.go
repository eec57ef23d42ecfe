package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/c360studio/testtag/processor/rewriter"
	"github.com/c360studio/testtag/recipe"
)

// MarkdownRenderer writes a report suitable for a pull request comment.
type MarkdownRenderer struct {
	opts Options
}

// Render implements Renderer.
func (r *MarkdownRenderer) Render(w io.Writer, report *rewriter.Report) error {
	var sb strings.Builder
	s := Summarize(report)

	sb.WriteString("## Test tags\n\n")
	if s.Changed == 0 && s.Failed == 0 {
		sb.WriteString("All test classes are tagged.\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	fmt.Fprintf(&sb, "%s of %d need tags", plural(s.Changed, "file"), s.Files)
	if len(s.Tags) > 0 {
		fmt.Fprintf(&sb, " (%s)", tagBreakdown(s.Tags))
	}
	sb.WriteString(".\n\n")

	if s.Changed > 0 {
		sb.WriteString("| File | Class | Tag |\n")
		sb.WriteString("|------|-------|-----|\n")
		for _, f := range report.Files {
			if !f.Changed {
				continue
			}
			if len(f.Tags) == 0 {
				fmt.Fprintf(&sb, "| `%s` | | import only |\n", f.Path)
			}
			for _, t := range f.Tags {
				fmt.Fprintf(&sb, "| `%s` | `%s` | `%s` |\n", f.Path, t.Class, recipe.AnnotationInsertion{Tag: t.Tag}.Text())
			}
		}
		sb.WriteString("\n")
	}

	if s.Failed > 0 {
		sb.WriteString("### Failed\n\n")
		for _, f := range report.Failed() {
			fmt.Fprintf(&sb, "- `%s`: %s\n", f.Path, f.Err)
		}
		sb.WriteString("\n")
	}

	if r.opts.Diff {
		for _, f := range report.Files {
			if f.Diff == "" {
				continue
			}
			fmt.Fprintf(&sb, "<details><summary>%s</summary>\n\n```diff\n%s```\n\n</details>\n\n", f.Path, f.Diff)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
