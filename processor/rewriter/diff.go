package rewriter

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffContext is the number of unchanged lines shown around each change.
const diffContext = 3

type diffLine struct {
	op   byte // ' ', '-' or '+'
	text string
}

// UnifiedDiff renders a line-based unified diff between before and after.
// It returns "" when the contents are equal.
func UnifiedDiff(path, before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var all []diffLine
	for _, d := range diffs {
		op := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = '-'
		case diffmatchpatch.DiffInsert:
			op = '+'
		}
		for _, line := range splitLines(d.Text) {
			all = append(all, diffLine{op: op, text: line})
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	for _, h := range hunks(all) {
		writeHunk(&sb, all, h[0], h[1])
	}
	return sb.String()
}

func splitLines(text string) []string {
	parts := strings.SplitAfter(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// hunks groups changed lines into [start, end) ranges with surrounding context.
// Changes closer than twice the context share a hunk.
func hunks(lines []diffLine) [][2]int {
	var out [][2]int
	start, last := -1, -1
	for i, l := range lines {
		if l.op == ' ' {
			continue
		}
		if start >= 0 && i-last > 2*diffContext {
			out = append(out, [2]int{start, min(len(lines), last+diffContext+1)})
			start = -1
		}
		if start < 0 {
			start = max(0, i-diffContext)
		}
		last = i
	}
	if start >= 0 {
		out = append(out, [2]int{start, min(len(lines), last+diffContext+1)})
	}
	return out
}

func writeHunk(sb *strings.Builder, lines []diffLine, start, end int) {
	oldStart, newStart := 1, 1
	for _, l := range lines[:start] {
		if l.op != '+' {
			oldStart++
		}
		if l.op != '-' {
			newStart++
		}
	}

	oldCount, newCount := 0, 0
	for _, l := range lines[start:end] {
		if l.op != '+' {
			oldCount++
		}
		if l.op != '-' {
			newCount++
		}
	}
	if oldCount == 0 {
		oldStart--
	}
	if newCount == 0 {
		newStart--
	}

	fmt.Fprintf(sb, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
	for _, l := range lines[start:end] {
		sb.WriteByte(l.op)
		sb.WriteString(l.text)
		if !strings.HasSuffix(l.text, "\n") {
			sb.WriteString("\n\\ No newline at end of file\n")
		}
	}
}
