package recipe

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnnotation string

func (a fakeAnnotation) SimpleName() string { return string(a) }

type fakeImport struct {
	pkg  string
	name string
}

func (i fakeImport) PackageName() string { return i.pkg }
func (i fakeImport) TypeName() string    { return i.name }

type fakeClass struct {
	name        string
	annotations []string
	nested      []*fakeClass
}

func (c *fakeClass) SimpleName() string { return c.name }

func (c *fakeClass) LeadingAnnotations() []Annotation {
	out := make([]Annotation, len(c.annotations))
	for i, a := range c.annotations {
		out[i] = fakeAnnotation(a)
	}
	return out
}

func (c *fakeClass) NestedClasses() []ClassDeclaration {
	out := make([]ClassDeclaration, len(c.nested))
	for i, n := range c.nested {
		out[i] = n
	}
	return out
}

type fakeUnit struct {
	path    string
	imports []fakeImport
	classes []*fakeClass
}

func (u *fakeUnit) SourcePath() string { return u.path }

func (u *fakeUnit) Imports() []Import {
	out := make([]Import, len(u.imports))
	for i, imp := range u.imports {
		out[i] = imp
	}
	return out
}

func (u *fakeUnit) Classes() []ClassDeclaration {
	out := make([]ClassDeclaration, len(u.classes))
	for i, c := range u.classes {
		out[i] = c
	}
	return out
}

// apply mutates the fake tree the way a host would.
func (u *fakeUnit) apply(plan *Plan) {
	for _, ins := range plan.Annotations {
		c := ins.Class.(*fakeClass)
		anns := append([]string{}, c.annotations[:ins.Index]...)
		anns = append(anns, TagAnnotation)
		c.annotations = append(anns, c.annotations[ins.Index:]...)
	}
	if plan.AddImport {
		u.imports = append(u.imports, fakeImport{pkg: TagPackage, name: TagAnnotation})
	}
}

type insertion struct {
	Class string
	Index int
	Tag   Tag
}

func summarize(plan *Plan) []insertion {
	var out []insertion
	for _, a := range plan.Annotations {
		out = append(out, insertion{Class: a.Class.SimpleName(), Index: a.Index, Tag: a.Tag})
	}
	return out
}

var testImport = fakeImport{pkg: "org.junit.jupiter.api", name: "Test"}

func TestVisit_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		unit       *fakeUnit
		want       []insertion
		wantImport bool
	}{
		{
			name: "unit test under test path",
			unit: &fakeUnit{
				path:    "project/src/test/java/MyTest.java",
				imports: []fakeImport{testImport},
				classes: []*fakeClass{{name: "MyTest"}},
			},
			want:       []insertion{{Class: "MyTest", Index: 0, Tag: TagUnit}},
			wantImport: true,
		},
		{
			name: "spring boot test",
			unit: &fakeUnit{
				path:    "MyIntegrationTest.java",
				classes: []*fakeClass{{name: "MyIntegrationTest", annotations: []string{"SpringBootTest", "Test"}}},
			},
			want:       []insertion{{Class: "MyIntegrationTest", Index: 1, Tag: TagIntegration}},
			wantImport: true,
		},
		{
			name: "already tagged unit",
			unit: &fakeUnit{
				path:    "MyTest.java",
				imports: []fakeImport{{pkg: TagPackage, name: TagAnnotation}, testImport},
				classes: []*fakeClass{{name: "MyTest", annotations: []string{"Tag", "Test"}}},
			},
		},
		{
			name: "already tagged integration",
			unit: &fakeUnit{
				path:    "MyIntegrationTest.java",
				imports: []fakeImport{{pkg: TagPackage, name: TagAnnotation}},
				classes: []*fakeClass{{name: "MyIntegrationTest", annotations: []string{"Tag", "SpringBootTest"}}},
			},
		},
		{
			name: "data jpa test",
			unit: &fakeUnit{
				path:    "MyJpaTest.java",
				classes: []*fakeClass{{name: "MyJpaTest", annotations: []string{"DataJpaTest"}}},
			},
			want:       []insertion{{Class: "MyJpaTest", Index: 1, Tag: TagIntegration}},
			wantImport: true,
		},
		{
			name: "web mvc tests share one import",
			unit: &fakeUnit{
				path: "MyControllerTest.java",
				classes: []*fakeClass{
					{name: "MyControllerTest", annotations: []string{"WebMvcTest"}},
					{name: "OtherControllerTest", annotations: []string{"WebMvcTest"}},
				},
			},
			want: []insertion{
				{Class: "MyControllerTest", Index: 0, Tag: TagIntegration},
				{Class: "OtherControllerTest", Index: 0, Tag: TagIntegration},
			},
			wantImport: true,
		},
		{
			name: "test annotation outside test path",
			unit: &fakeUnit{
				path:    "src/main/java/Helper.java",
				classes: []*fakeClass{{name: "Helper", annotations: []string{"Test"}}},
			},
			want:       []insertion{{Class: "Helper", Index: 0, Tag: TagUnit}},
			wantImport: true,
		},
		{
			name: "production class is left alone",
			unit: &fakeUnit{
				path:    "src/main/java/Service.java",
				classes: []*fakeClass{{name: "Service", annotations: []string{"Component"}}},
			},
		},
		{
			name: "already tagged class still requests missing import",
			unit: &fakeUnit{
				path:    "src/test/java/MyTest.java",
				classes: []*fakeClass{{name: "MyTest", annotations: []string{"Tag"}}},
			},
			wantImport: true,
		},
		{
			name: "wildcard import does not count",
			unit: &fakeUnit{
				path:    "src/test/java/MyTest.java",
				imports: []fakeImport{{pkg: TagPackage, name: "*"}},
				classes: []*fakeClass{{name: "MyTest"}},
			},
			want:       []insertion{{Class: "MyTest", Index: 0, Tag: TagUnit}},
			wantImport: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := New().Visit(tt.unit)
			if diff := cmp.Diff(tt.want, summarize(plan)); diff != "" {
				t.Errorf("annotations mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.wantImport, plan.AddImport)
		})
	}
}

func TestVisit_NestedClasses(t *testing.T) {
	unit := &fakeUnit{
		path: "src/main/java/Outer.java",
		classes: []*fakeClass{
			{
				name:        "OuterTest",
				annotations: []string{"Test"},
				nested: []*fakeClass{
					{name: "Inner", annotations: []string{"Nested"}},
					{name: "InnerTest", annotations: []string{"DataRedisTest"}},
				},
			},
			{
				name: "Production",
				nested: []*fakeClass{
					{name: "HiddenTest", annotations: []string{"Test"}},
				},
			},
		},
	}

	plan := New().Visit(unit)

	// Nested classes are visited before their parent; classes nested in a
	// non-test class are never reached.
	want := []insertion{
		{Class: "InnerTest", Index: 1, Tag: TagIntegration},
		{Class: "OuterTest", Index: 0, Tag: TagUnit},
	}
	if diff := cmp.Diff(want, summarize(plan)); diff != "" {
		t.Errorf("annotations mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, plan.AddImport)
}

func TestVisit_Idempotent(t *testing.T) {
	unit := &fakeUnit{
		path:    "src/test/java/com/example/ServiceTest.java",
		imports: []fakeImport{testImport},
		classes: []*fakeClass{
			{name: "ServiceTest", annotations: []string{"DisplayName", "WebFluxTest"}, nested: []*fakeClass{{name: "Inner"}}},
			{name: "RepoTest", annotations: []string{"DataCassandraTest"}},
		},
	}

	r := New()
	first := r.Visit(unit)
	require.False(t, first.Empty())
	unit.apply(first)

	second := r.Visit(unit)
	assert.True(t, second.Empty(), "second visit should request nothing, got %+v", summarize(second))
	assert.Equal(t, []string{"DisplayName", "Tag", "WebFluxTest"}, unit.classes[0].annotations)
}

func TestVisit_ConcurrentFilesAreIsolated(t *testing.T) {
	r := New()
	tagged := &fakeUnit{path: "src/test/java/ATest.java", classes: []*fakeClass{{name: "ATest"}}}
	plain := &fakeUnit{path: "src/main/java/A.java", classes: []*fakeClass{{name: "A"}}}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.True(t, r.Visit(tagged).AddImport)
		}()
		go func() {
			defer wg.Done()
			assert.True(t, r.Visit(plain).Empty())
		}()
	}
	wg.Wait()
}

func TestPlanEmpty(t *testing.T) {
	var nilPlan *Plan
	assert.True(t, nilPlan.Empty())
	assert.True(t, (&Plan{}).Empty())
	assert.False(t, (&Plan{AddImport: true}).Empty())
}

func TestAnnotationInsertionText(t *testing.T) {
	assert.Equal(t, `@Tag("unit")`, AnnotationInsertion{Tag: TagUnit}.Text())
	assert.Equal(t, `@Tag("integration")`, AnnotationInsertion{Tag: TagIntegration}.Text())
}

func TestRecipeMetadata(t *testing.T) {
	r := New()
	assert.Equal(t, "Add @Tag('unit') or @Tag('integration') to your test classes", r.DisplayName())
	for _, m := range IntegrationMarkers() {
		assert.Contains(t, r.Description(), "@"+m)
	}
	assert.Contains(t, r.Description(), "@RestClientTest).")
}
