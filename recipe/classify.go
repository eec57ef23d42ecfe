package recipe

import "strings"

// Tag is the value carried by an inserted @Tag annotation.
type Tag string

const (
	TagUnit        Tag = "unit"
	TagIntegration Tag = "integration"
)

const (
	// TagAnnotation is the simple name of the tag annotation type.
	TagAnnotation = "Tag"
	// TestAnnotation marks a test method or class.
	TestAnnotation = "Test"
	// TagPackage is the package of the tag annotation type.
	TagPackage = "org.junit.jupiter.api"
	// ImportTag is the fully-qualified name imported when a test class is found.
	ImportTag = TagPackage + "." + TagAnnotation
)

// integrationMarkers are the framework test slices that make a test class an
// integration test. Matching is on the exact simple name.
var integrationMarkers = map[string]bool{
	"SpringBootTest":    true,
	"DataJpaTest":       true,
	"WebMvcTest":        true,
	"WebFluxTest":       true,
	"JdbcTest":          true,
	"DataMongoTest":     true,
	"DataRedisTest":     true,
	"DataCassandraTest": true,
	"RestClientTest":    true,
}

// IntegrationMarkers returns the recognized integration marker names in
// declaration order.
func IntegrationMarkers() []string {
	return []string{
		"SpringBootTest", "DataJpaTest", "WebMvcTest",
		"WebFluxTest", "JdbcTest", "DataMongoTest",
		"DataRedisTest", "DataCassandraTest", "RestClientTest",
	}
}

// IsIntegrationMarker reports whether name is one of the integration markers.
func IsIntegrationMarker(name string) bool {
	return integrationMarkers[name]
}

// InTestPath reports whether a source path looks like a test source.
//
// The Test.java check is a plain substring match, so paths such as
// FooTest.java.bak or a directory named Test.java also match.
func InTestPath(path string) bool {
	return strings.Contains(path, "/src/test/") ||
		strings.Contains(path, "/test/") ||
		strings.Contains(path, "Test.java")
}

// IsTestClass reports whether a declaration in the file at path is a test class,
// either by location or by carrying @Test or an integration marker.
func IsTestClass(cd ClassDeclaration, path string) bool {
	if InTestPath(path) {
		return true
	}
	for _, ann := range cd.LeadingAnnotations() {
		name := ann.SimpleName()
		if name == TestAnnotation || IsIntegrationMarker(name) {
			return true
		}
	}
	return false
}

// IsIntegration reports whether any annotation is an integration marker.
func IsIntegration(annotations []Annotation) bool {
	for _, ann := range annotations {
		if IsIntegrationMarker(ann.SimpleName()) {
			return true
		}
	}
	return false
}

// HasTag reports whether a Tag annotation is present. Its value is not inspected.
//
// Names are compared on Annotation.SimpleName, the last segment of the
// annotation type, so a fully qualified @org.junit.jupiter.api.Tag counts as
// a tag and integration markers may be qualified as well. Matching qualified
// names is deliberate: a class written with the qualified form never gets a
// second @Tag.
func HasTag(annotations []Annotation) bool {
	for _, ann := range annotations {
		if ann.SimpleName() == TagAnnotation {
			return true
		}
	}
	return false
}

// Classify returns the tag a test class with these annotations should carry.
func Classify(annotations []Annotation) Tag {
	if IsIntegration(annotations) {
		return TagIntegration
	}
	return TagUnit
}

// InsertIndex returns the position of a new Tag annotation among annotations:
// before the first one whose simple name sorts after Tag, or at the end.
func InsertIndex(annotations []Annotation) int {
	for i, ann := range annotations {
		if TagAnnotation < ann.SimpleName() {
			return i
		}
	}
	return len(annotations)
}

// HasTagImport reports whether the Tag type is imported by exact package and
// type name. Wildcard imports are not considered.
func HasTagImport(imports []Import) bool {
	for _, imp := range imports {
		if imp.TypeName() == TagAnnotation && imp.PackageName() == TagPackage {
			return true
		}
	}
	return false
}
