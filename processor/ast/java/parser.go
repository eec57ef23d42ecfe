// Package java provides the Java host for the test tag recipe: tree-sitter
// parsing into recipe trees and rendering of recipe plans back into source.
package java

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/c360studio/testtag/processor/ast"
	"github.com/c360studio/testtag/recipe"
)

func init() {
	ast.DefaultRegistry.Register("java", []string{".java"}, func() ast.Host {
		return NewHost()
	})
}

// Parser builds compilation units from Java source using tree-sitter.
// A Parser is not safe for concurrent use.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a new Java parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Parser{parser: p}
}

// Parse parses src into a compilation unit recorded under path.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*CompilationUnit, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(path, root)
	}

	unit := &CompilationUnit{
		Path:           path,
		Source:         src,
		firstDeclStart: -1,
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)

		switch child.Type() {
		case "package_declaration":
			unit.Package = extractPackageName(child, src)
			unit.PackageSpan = &Span{Start: int(child.StartByte()), End: int(child.EndByte())}

		case "import_declaration":
			if imp := extractImport(child, src); imp != nil {
				unit.ImportDecls = append(unit.ImportDecls, imp)
			}

		case "line_comment", "block_comment":
			continue

		default:
			if unit.firstDeclStart < 0 {
				unit.firstDeclStart = int(child.StartByte())
			}
			if _, ok := declarationKinds[child.Type()]; ok {
				unit.Declarations = append(unit.Declarations, extractDeclaration(unit, child, src))
			}
		}
	}

	return unit, nil
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.parser.Close()
}

// syntaxError locates the first error node below root.
func syntaxError(path string, root *sitter.Node) error {
	node := firstError(root)
	if node == nil {
		return fmt.Errorf("%w in %s", ast.ErrSyntax, path)
	}
	pt := node.StartPoint()
	return fmt.Errorf("%w at %s:%d:%d", ast.ErrSyntax, path, pt.Row+1, pt.Column+1)
}

func firstError(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsMissing() {
			if found := firstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}

// extractPackageName extracts the package name from a package declaration.
func extractPackageName(node *sitter.Node, src []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
			return child.Content(src)
		}
	}
	return ""
}

// extractImport builds an Import from an import declaration.
func extractImport(node *sitter.Node, src []byte) *Import {
	imp := &Import{Span: Span{Start: int(node.StartByte()), End: int(node.EndByte())}}

	var name string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "static":
			imp.Static = true
		case "asterisk", "*":
			imp.Wildcard = true
		case "scoped_identifier", "identifier":
			name = child.Content(src)
		}
	}
	if name == "" {
		return nil
	}

	if imp.Wildcard {
		imp.Qualifier = name
		imp.Name = "*"
		return imp
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		imp.Qualifier = name[:i]
		imp.Name = name[i+1:]
	} else {
		imp.Name = name
	}
	return imp
}

// extractDeclaration builds a ClassDeclaration and its nested declarations.
func extractDeclaration(unit *CompilationUnit, node *sitter.Node, src []byte) *ClassDeclaration {
	decl := &ClassDeclaration{
		Kind: declarationKinds[node.Type()],
		Span: Span{Start: int(node.StartByte()), End: int(node.EndByte())},
		line: int(node.StartPoint().Row) + 1,
		unit: unit,
	}
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		decl.Name = nameNode.Content(src)
	}

	decl.Annotations = extractLeadingAnnotations(node, src)

	if body := node.ChildByFieldName("body"); body != nil {
		collectNested(unit, body, src, &decl.Nested)
	}

	return decl
}

// extractLeadingAnnotations returns the annotations in the modifiers of node
// that precede the first keyword modifier.
func extractLeadingAnnotations(node *sitter.Node, src []byte) []*Annotation {
	var modifiers *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == "modifiers" {
			modifiers = child
			break
		}
	}
	if modifiers == nil {
		return nil
	}

	var annotations []*Annotation
	for i := 0; i < int(modifiers.ChildCount()); i++ {
		child := modifiers.Child(i)
		switch child.Type() {
		case "marker_annotation", "annotation":
			annotations = append(annotations, &Annotation{
				Name: annotationName(child, src),
				Span: Span{Start: int(child.StartByte()), End: int(child.EndByte())},
			})
		case "line_comment", "block_comment":
			continue
		default:
			return annotations
		}
	}
	return annotations
}

// annotationName returns the annotation type as written, without the @.
func annotationName(node *sitter.Node, src []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return nameNode.Content(src)
	}
	text := strings.TrimPrefix(node.Content(src), "@")
	if i := strings.IndexByte(text, '('); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// collectNested appends the declarations found below node without descending
// into the declarations themselves.
func collectNested(unit *CompilationUnit, node *sitter.Node, src []byte, out *[]*ClassDeclaration) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if _, ok := declarationKinds[child.Type()]; ok {
			*out = append(*out, extractDeclaration(unit, child, src))
			continue
		}
		collectNested(unit, child, src, out)
	}
}

// Host adapts Parser and the plan renderer to ast.Host.
type Host struct {
	parser *Parser
}

// NewHost creates a Java host with its own parser.
func NewHost() *Host {
	return &Host{parser: NewParser()}
}

// Parse implements ast.Host.
func (h *Host) Parse(ctx context.Context, path string, src []byte) (recipe.CompilationUnit, error) {
	unit, err := h.parser.Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	return unit, nil
}

// Apply implements ast.Host.
func (h *Host) Apply(cu recipe.CompilationUnit, plan *recipe.Plan) ([]byte, error) {
	unit, ok := cu.(*CompilationUnit)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ast.ErrForeignNode, cu)
	}
	return Apply(unit, plan)
}

// ImportCovered implements ast.ImportCoverer.
func (h *Host) ImportCovered(cu recipe.CompilationUnit, fqn string) bool {
	unit, ok := cu.(*CompilationUnit)
	return ok && importCovered(unit, fqn)
}

// Close releases the host's parser.
func (h *Host) Close() error {
	h.parser.Close()
	return nil
}
