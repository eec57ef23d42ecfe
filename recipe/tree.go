// Package recipe implements the test tag rule: test classes are annotated with
// @Tag("unit") or @Tag("integration") and the Tag type is imported once per file.
//
// The rule only reads the tree through the interfaces declared here. Parsing,
// code generation and import placement belong to a host (see processor/ast/java),
// which applies the Plan returned by Recipe.Visit.
package recipe

// Annotation is a leading annotation on a declaration.
type Annotation interface {
	// SimpleName is the last identifier of the annotation type
	// (Tag for both @Tag and @org.junit.jupiter.api.Tag).
	SimpleName() string
}

// Import is an import declaration of a compilation unit.
type Import interface {
	// PackageName is the qualifier of the imported type (org.junit.jupiter.api).
	PackageName() string
	// TypeName is the simple name of the imported type (Tag).
	TypeName() string
}

// ClassDeclaration is a class-like declaration.
type ClassDeclaration interface {
	SimpleName() string
	LeadingAnnotations() []Annotation
	// NestedClasses returns the declarations nested directly in this one's body.
	NestedClasses() []ClassDeclaration
}

// CompilationUnit is one parsed source file.
type CompilationUnit interface {
	SourcePath() string
	Imports() []Import
	// Classes returns the top-level declarations in source order.
	Classes() []ClassDeclaration
}
