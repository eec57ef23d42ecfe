package java

import (
	"strings"

	"github.com/c360studio/testtag/recipe"
)

// DeclarationKind classifies a class-like declaration.
type DeclarationKind string

const (
	KindClass          DeclarationKind = "class"
	KindInterface      DeclarationKind = "interface"
	KindEnum           DeclarationKind = "enum"
	KindRecord         DeclarationKind = "record"
	KindAnnotationType DeclarationKind = "annotation"
)

// declarationKinds maps tree-sitter node types to declaration kinds.
var declarationKinds = map[string]DeclarationKind{
	"class_declaration":           KindClass,
	"interface_declaration":       KindInterface,
	"enum_declaration":            KindEnum,
	"record_declaration":          KindRecord,
	"annotation_type_declaration": KindAnnotationType,
}

// Span is a half-open byte range in the source.
type Span struct {
	Start int
	End   int
}

// Annotation is a leading annotation on a declaration.
type Annotation struct {
	// Name is the annotation type as written (Tag or org.junit.jupiter.api.Tag).
	Name string
	Span Span
}

// SimpleName returns the last segment of the annotation type.
func (a *Annotation) SimpleName() string {
	if i := strings.LastIndexByte(a.Name, '.'); i >= 0 {
		return a.Name[i+1:]
	}
	return a.Name
}

// Import is an import declaration.
type Import struct {
	// Qualifier is everything before the last segment; for wildcard imports it is
	// the imported package itself.
	Qualifier string
	// Name is the last segment, or "*" for wildcard imports.
	Name     string
	Static   bool
	Wildcard bool
	Span     Span
}

// PackageName returns the import qualifier.
func (i *Import) PackageName() string { return i.Qualifier }

// TypeName returns the imported simple name.
func (i *Import) TypeName() string { return i.Name }

// FullyQualifiedName joins qualifier and name.
func (i *Import) FullyQualifiedName() string {
	if i.Qualifier == "" {
		return i.Name
	}
	return i.Qualifier + "." + i.Name
}

// ClassDeclaration is a class, interface, enum, record or annotation type.
type ClassDeclaration struct {
	Kind DeclarationKind
	Name string
	// Annotations are the annotations before the first keyword modifier.
	Annotations []*Annotation
	Nested      []*ClassDeclaration
	Span        Span

	line int
	unit *CompilationUnit
}

// SimpleName returns the declared name.
func (c *ClassDeclaration) SimpleName() string { return c.Name }

// StartLine returns the 1-based line the declaration starts on.
func (c *ClassDeclaration) StartLine() int { return c.line }

// LeadingAnnotations returns the leading annotations as recipe annotations.
func (c *ClassDeclaration) LeadingAnnotations() []recipe.Annotation {
	out := make([]recipe.Annotation, len(c.Annotations))
	for i, a := range c.Annotations {
		out[i] = a
	}
	return out
}

// NestedClasses returns the declarations nested in this declaration's body.
func (c *ClassDeclaration) NestedClasses() []recipe.ClassDeclaration {
	out := make([]recipe.ClassDeclaration, len(c.Nested))
	for i, n := range c.Nested {
		out[i] = n
	}
	return out
}

// CompilationUnit is one parsed Java source file.
type CompilationUnit struct {
	Path    string
	Source  []byte
	Package string
	// PackageSpan is the package declaration, or nil when there is none.
	PackageSpan    *Span
	ImportDecls    []*Import
	Declarations   []*ClassDeclaration
	firstDeclStart int
}

// SourcePath returns the path the unit was parsed from.
func (u *CompilationUnit) SourcePath() string { return u.Path }

// Imports returns the import declarations as recipe imports.
func (u *CompilationUnit) Imports() []recipe.Import {
	out := make([]recipe.Import, len(u.ImportDecls))
	for i, imp := range u.ImportDecls {
		out[i] = imp
	}
	return out
}

// Classes returns the top-level declarations.
func (u *CompilationUnit) Classes() []recipe.ClassDeclaration {
	out := make([]recipe.ClassDeclaration, len(u.Declarations))
	for i, d := range u.Declarations {
		out[i] = d
	}
	return out
}

// Walk calls fn for every declaration in depth-first source order.
func (u *CompilationUnit) Walk(fn func(*ClassDeclaration)) {
	var walk func([]*ClassDeclaration)
	walk = func(decls []*ClassDeclaration) {
		for _, d := range decls {
			fn(d)
			walk(d.Nested)
		}
	}
	walk(u.Declarations)
}
