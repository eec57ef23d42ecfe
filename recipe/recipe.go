package recipe

import "strings"

// AnnotationInsertion requests a @Tag annotation on one class declaration.
type AnnotationInsertion struct {
	Class ClassDeclaration
	// Index is the position among the class's leading annotations.
	Index int
	Tag   Tag
}

// Text returns the annotation source, e.g. @Tag("unit").
func (a AnnotationInsertion) Text() string {
	return "@" + TagAnnotation + `("` + string(a.Tag) + `")`
}

// Plan holds the mutations requested for one compilation unit.
type Plan struct {
	// Annotations are in visit order: outer classes after their nested classes.
	Annotations []AnnotationInsertion
	// AddImport requests an import of ImportTag.
	AddImport bool
}

// Empty reports whether the plan requests no change.
func (p *Plan) Empty() bool {
	return p == nil || (len(p.Annotations) == 0 && !p.AddImport)
}

// Recipe is the test tag rule. The zero value is ready to use and safe for
// concurrent use; per-file state is created by each Visit call.
type Recipe struct{}

// New returns the test tag recipe.
func New() *Recipe {
	return &Recipe{}
}

// Name is the stable identifier of the recipe.
func (r *Recipe) Name() string {
	return "testtag.AddTestTag"
}

// DisplayName returns a human-readable name.
func (r *Recipe) DisplayName() string {
	return "Add @Tag('unit') or @Tag('integration') to your test classes"
}

// Description lists what the recipe does and which annotations make a test
// class an integration test.
func (r *Recipe) Description() string {
	markers := IntegrationMarkers()
	for i, m := range markers {
		markers[i] = "@" + m
	}
	return "This adds either @Tag('unit') tag if your test class is a unitary test class, or " +
		"@Tag('integration') if your test class is an integration test class (" +
		strings.Join(markers, ", ") + ")."
}

// Visit walks a compilation unit and returns the mutations it requires.
func (r *Recipe) Visit(cu CompilationUnit) *Plan {
	v := &visitor{path: cu.SourcePath(), plan: &Plan{}}
	for _, cd := range cu.Classes() {
		v.visitClass(cd)
	}

	// Deferred until the whole file was walked.
	if v.foundTestClass && !HasTagImport(cu.Imports()) {
		v.plan.AddImport = true
	}
	return v.plan
}

// visitor carries the state of one compilation unit.
type visitor struct {
	path           string
	foundTestClass bool
	plan           *Plan
}

func (v *visitor) visitClass(cd ClassDeclaration) {
	if !IsTestClass(cd, v.path) {
		return
	}
	v.foundTestClass = true

	for _, nested := range cd.NestedClasses() {
		v.visitClass(nested)
	}

	annotations := cd.LeadingAnnotations()
	if HasTag(annotations) {
		return
	}

	v.plan.Annotations = append(v.plan.Annotations, AnnotationInsertion{
		Class: cd,
		Index: InsertIndex(annotations),
		Tag:   Classify(annotations),
	})
}
