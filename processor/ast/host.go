// Package ast defines the language hosts the test tag recipe runs on and
// watches source trees for changes.
package ast

import (
	"context"
	"errors"

	"github.com/c360studio/testtag/recipe"
)

var (
	// ErrHostNotRegistered is returned when no host serves a language or extension.
	ErrHostNotRegistered = errors.New("host not registered")

	// ErrSyntax is returned when a source file cannot be parsed cleanly.
	ErrSyntax = errors.New("syntax error")

	// ErrForeignNode is returned when a plan references nodes the host did not produce.
	ErrForeignNode = errors.New("plan references a foreign node")
)

// Host parses source files into trees the recipe can visit and renders the
// recipe's plan back into source.
type Host interface {
	// Parse builds a compilation unit from src. path is recorded as the unit's
	// source path and is not read.
	Parse(ctx context.Context, path string, src []byte) (recipe.CompilationUnit, error)

	// Apply returns the source of cu with plan applied.
	Apply(cu recipe.CompilationUnit, plan *recipe.Plan) ([]byte, error)
}

// Positioned is implemented by tree nodes that know their source line.
type Positioned interface {
	StartLine() int
}

// ImportCoverer is implemented by hosts that can satisfy an import through
// declarations the recipe does not inspect, such as on-demand imports. Such
// hosts skip the import in Apply when it is covered.
type ImportCoverer interface {
	ImportCovered(cu recipe.CompilationUnit, fqn string) bool
}
