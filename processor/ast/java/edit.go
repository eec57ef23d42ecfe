package java

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/testtag/processor/ast"
	"github.com/c360studio/testtag/recipe"
)

// edit is a pending text insertion. Edits at the same offset are emitted in
// ascending priority.
type edit struct {
	offset   int
	priority int
	text     string
}

const (
	priorityImport = iota
	priorityAnnotation
)

// Apply renders plan into the source of unit and returns the new source.
// The unit itself is not modified.
func Apply(unit *CompilationUnit, plan *recipe.Plan) ([]byte, error) {
	if plan.Empty() {
		return unit.Source, nil
	}

	var edits []edit
	for i, ins := range plan.Annotations {
		decl, ok := ins.Class.(*ClassDeclaration)
		if !ok || decl.unit != unit {
			return nil, fmt.Errorf("%w: annotation %d targets %T", ast.ErrForeignNode, i, ins.Class)
		}
		e, err := annotationEdit(unit.Source, decl, ins)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	if plan.AddImport && !importCovered(unit, recipe.ImportTag) {
		edits = append(edits, importEdit(unit, recipe.ImportTag))
	}

	return render(unit.Source, edits), nil
}

// annotationEdit places ins among the leading annotations of decl. The new
// annotation goes on its own line when the neighbouring annotation starts a
// line, otherwise it is separated by a space.
func annotationEdit(src []byte, decl *ClassDeclaration, ins recipe.AnnotationInsertion) (edit, error) {
	anns := decl.Annotations
	if ins.Index < 0 || ins.Index > len(anns) {
		return edit{}, fmt.Errorf("annotation index %d out of range for %s (%d annotations)", ins.Index, decl.Name, len(anns))
	}
	text := ins.Text()

	if ins.Index < len(anns) {
		at := anns[ins.Index].Span.Start
		return edit{offset: at, priority: priorityAnnotation, text: text + separator(src, at)}, nil
	}
	if len(anns) == 0 {
		at := decl.Span.Start
		return edit{offset: at, priority: priorityAnnotation, text: text + separator(src, at)}, nil
	}

	last := anns[len(anns)-1]
	return edit{offset: last.Span.End, priority: priorityAnnotation, text: separator(src, last.Span.Start) + text}, nil
}

// importCovered reports whether a non-static on-demand import already makes
// fqn visible, e.g. import org.junit.jupiter.api.*; for org.junit.jupiter.api.Tag.
func importCovered(unit *CompilationUnit, fqn string) bool {
	i := strings.LastIndexByte(fqn, '.')
	if i < 0 {
		return false
	}
	for _, imp := range unit.ImportDecls {
		if imp.Wildcard && !imp.Static && imp.Qualifier == fqn[:i] {
			return true
		}
	}
	return false
}

// importEdit inserts an import of fqn among the non-static imports in
// lexicographic order. Without imports it goes after the package declaration,
// or before the first declaration of the file.
func importEdit(unit *CompilationUnit, fqn string) edit {
	line := "import " + fqn + ";"

	var regular, static []*Import
	for _, imp := range unit.ImportDecls {
		if imp.Static {
			static = append(static, imp)
		} else {
			regular = append(regular, imp)
		}
	}

	for _, imp := range regular {
		if fqn < imp.FullyQualifiedName() {
			at := imp.Span.Start
			return edit{offset: at, priority: priorityImport, text: line + separator(unit.Source, at)}
		}
	}
	if len(regular) > 0 {
		last := regular[len(regular)-1]
		return edit{offset: last.Span.End, priority: priorityImport, text: "\n" + indentation(unit.Source, last.Span.Start) + line}
	}
	if len(static) > 0 {
		return edit{offset: static[0].Span.Start, priority: priorityImport, text: line + "\n\n"}
	}
	if unit.PackageSpan != nil {
		return edit{offset: unit.PackageSpan.End, priority: priorityImport, text: "\n\n" + line}
	}
	if unit.firstDeclStart >= 0 {
		return edit{offset: unit.firstDeclStart, priority: priorityImport, text: line + "\n\n"}
	}
	return edit{offset: len(unit.Source), priority: priorityImport, text: line + "\n"}
}

// render applies edits to src in a single forward pass.
func render(src []byte, edits []edit) []byte {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].offset != edits[j].offset {
			return edits[i].offset < edits[j].offset
		}
		return edits[i].priority < edits[j].priority
	})

	size := len(src)
	for _, e := range edits {
		size += len(e.text)
	}

	var buf bytes.Buffer
	buf.Grow(size)
	prev := 0
	for _, e := range edits {
		buf.Write(src[prev:e.offset])
		buf.WriteString(e.text)
		prev = e.offset
	}
	buf.Write(src[prev:])
	return buf.Bytes()
}

// separator returns "\n" plus the indentation of the line containing offset
// when only whitespace precedes offset on that line, otherwise a single space.
func separator(src []byte, offset int) string {
	start := lineStart(src, offset)
	prefix := src[start:offset]
	if len(bytes.TrimLeft(prefix, " \t")) != 0 {
		return " "
	}
	return "\n" + string(prefix)
}

// indentation returns the leading whitespace of the line containing offset.
func indentation(src []byte, offset int) string {
	start := lineStart(src, offset)
	end := start
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[start:end])
}

func lineStart(src []byte, offset int) int {
	if i := bytes.LastIndexByte(src[:offset], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}
