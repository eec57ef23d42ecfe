package rewriter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/c360studio/testtag/events"
	"github.com/c360studio/testtag/processor/ast"
	_ "github.com/c360studio/testtag/processor/ast/java"
	"github.com/c360studio/testtag/recipe"
)

const unitSource = `package com.example;

import org.junit.jupiter.api.Test;

class CalculatorTest {
    @Test
    void adds() {}
}
`

const unitExpected = `package com.example;

import org.junit.jupiter.api.Tag;
import org.junit.jupiter.api.Test;

@Tag("unit")
class CalculatorTest {
    @Test
    void adds() {}
}
`

const integrationSource = `package com.example;

import org.junit.jupiter.api.Test;
import org.springframework.boot.test.context.SpringBootTest;

@SpringBootTest
class OrderServiceTest {
    @Test
    void loads() {}
}
`

const integrationExpected = `package com.example;

import org.junit.jupiter.api.Tag;
import org.junit.jupiter.api.Test;
import org.springframework.boot.test.context.SpringBootTest;

@SpringBootTest
@Tag("integration")
class OrderServiceTest {
    @Test
    void loads() {}
}
`

const productionSource = `package com.example;

class Calculator {
    int add(int a, int b) { return a + b; }
}
`

// writeTree creates files below a temporary root and returns their sources
// in the order given.
func writeTree(t *testing.T, files map[string]string, order ...string) (string, []Source) {
	t.Helper()
	return writeTreeAt(t, t.TempDir(), files, order...)
}

func writeTreeAt(t *testing.T, root string, files map[string]string, order ...string) (string, []Source) {
	t.Helper()
	var sources []Source
	for _, rel := range order {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(files[rel]), 0644))
		sources = append(sources, NewSource(root, path))
	}
	return root, sources
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestRunner_Apply(t *testing.T) {
	defer goleak.VerifyNone(t)

	files := map[string]string{
		"src/test/java/com/example/CalculatorTest.java":   unitSource,
		"src/test/java/com/example/OrderServiceTest.java": integrationSource,
		"src/main/java/com/example/Calculator.java":       productionSource,
	}
	_, paths := writeTree(t, files,
		"src/test/java/com/example/CalculatorTest.java",
		"src/test/java/com/example/OrderServiceTest.java",
		"src/main/java/com/example/Calculator.java",
	)

	pub := &recordingPublisher{}
	r, err := New(Config{Mode: ModeApply, Workers: 2}, WithPublisher(pub))
	require.NoError(t, err)

	report, err := r.Run(context.Background(), paths)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, ModeApply, report.Mode)
	require.Len(t, report.Files, 3)
	for i, res := range report.Files {
		assert.Equal(t, paths[i].Path, res.Path, "results keep input order")
		assert.NoError(t, res.Err)
	}

	assert.Equal(t, unitExpected, readFile(t, paths[0].Path))
	assert.Equal(t, integrationExpected, readFile(t, paths[1].Path))
	assert.Equal(t, productionSource, readFile(t, paths[2].Path))

	assert.Equal(t, 2, report.Changed())
	assert.Equal(t, 2, report.ImportsAdded())
	assert.Equal(t, map[recipe.Tag]int{recipe.TagUnit: 1, recipe.TagIntegration: 1}, report.TagCounts())

	unit := report.Files[0]
	require.Len(t, unit.Tags, 1)
	assert.Equal(t, TagResult{Class: "CalculatorTest", Line: 5, Tag: recipe.TagUnit}, unit.Tags[0])
	assert.True(t, unit.ImportAdded)
	assert.Empty(t, unit.Diff, "diffs are off by default")

	assert.Len(t, pub.events, 2)
	for _, ev := range pub.events {
		assert.Equal(t, report.RunID, ev.RunID)
		assert.Equal(t, "apply", ev.Mode)
	}

	// A second run finds nothing left to do.
	again, err := r.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.Zero(t, again.Changed())
	assert.NotEqual(t, report.RunID, again.RunID)
}

func TestRunner_ClassifiesProjectRelativePaths(t *testing.T) {
	defer goleak.VerifyNone(t)

	const service = "package com.example;\n\npublic class Service {}\n"

	// Checkouts whose parent directories look like test locations.
	for _, parent := range []string{"test", "FooTest.java"} {
		t.Run(parent, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), parent, "myapp")
			rel := "src/main/java/com/example/Service.java"
			writeTreeAt(t, root, map[string]string{rel: service}, rel)

			files, err := ResolveFiles(FileSet{Roots: []string{root}})
			require.NoError(t, err)
			require.Len(t, files, 1)
			assert.Equal(t, rel, files[0].Rel)

			r, err := New(Config{Mode: ModeApply})
			require.NoError(t, err)

			report, err := r.Run(context.Background(), files)
			require.NoError(t, err)
			assert.Zero(t, report.Changed())
			assert.Equal(t, service, readFile(t, files[0].Path))
		})
	}
}

func TestRunner_RootBelowProjectDirectory(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "pom.xml"), []byte("<project/>\n"), 0644))

	rel := "src/test/java/com/example/Fixtures.java"
	writeTreeAt(t, project, map[string]string{rel: "package com.example;\n\nclass Fixtures {}\n"}, rel)

	files, err := ResolveFiles(FileSet{Roots: []string{filepath.Join(project, "src", "test", "java")}})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, rel, files[0].Rel)

	r, err := New(Config{Mode: ModeDryRun})
	require.NoError(t, err)

	report, err := r.Run(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.Len(t, report.Files[0].Tags, 1)
	assert.Equal(t, recipe.TagUnit, report.Files[0].Tags[0].Tag)
}

func TestRunner_DryRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	rel := "src/test/java/com/example/CalculatorTest.java"
	_, paths := writeTree(t, map[string]string{rel: unitSource}, rel)

	r, err := New(Config{Mode: ModeDryRun, Diff: true})
	require.NoError(t, err)

	report, err := r.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)

	res := report.Files[0]
	assert.True(t, res.Changed)
	assert.Equal(t, unitSource, readFile(t, paths[0].Path), "dry run must not write")
	assert.Contains(t, res.Diff, "--- a/src/test/java/com/example/CalculatorTest.java\n")
	assert.Contains(t, res.Diff, "+import org.junit.jupiter.api.Tag;\n")
	assert.Contains(t, res.Diff, "+@Tag(\"unit\")\n")
}

func TestRunner_FailuresAreIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)

	files := map[string]string{
		"src/test/java/BrokenTest.java":     "class BrokenTest {\n  void x( {\n}\n",
		"src/test/java/CalculatorTest.java": unitSource,
	}
	root, paths := writeTree(t, files, "src/test/java/BrokenTest.java", "src/test/java/CalculatorTest.java")
	paths = append(paths, NewSource(root, filepath.Join(root, "src", "test", "java", "MissingTest.java")))

	r, err := New(Config{Mode: ModeApply, Workers: 1})
	require.NoError(t, err)

	report, err := r.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, report.Files, 3)

	assert.ErrorIs(t, report.Files[0].Err, ast.ErrSyntax)
	assert.NotEmpty(t, report.Files[0].Error)
	assert.True(t, report.Files[1].Changed)
	assert.ErrorIs(t, report.Files[2].Err, os.ErrNotExist)
	assert.Len(t, report.Failed(), 2)
}

func TestRunner_FailFast(t *testing.T) {
	defer goleak.VerifyNone(t)

	files := map[string]string{
		"src/test/java/BrokenTest.java":     "class {",
		"src/test/java/CalculatorTest.java": unitSource,
	}
	_, paths := writeTree(t, files, "src/test/java/BrokenTest.java", "src/test/java/CalculatorTest.java")

	r, err := New(Config{Mode: ModeDryRun, Workers: 1, FailFast: true})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), paths)
	require.Error(t, err)
	assert.ErrorIs(t, err, ast.ErrSyntax)
}

func TestRunner_CancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	rel := "src/test/java/CalculatorTest.java"
	_, paths := writeTree(t, map[string]string{rel: unitSource}, rel)

	r, err := New(Config{Mode: ModeApply})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx, paths)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Files)
	assert.Equal(t, unitSource, readFile(t, paths[0].Path))
}

func TestRunner_UnknownExtension(t *testing.T) {
	rel := "src/test/kotlin/FooTest.kt"
	_, paths := writeTree(t, map[string]string{rel: "class FooTest"}, rel)

	r, err := New(Config{})
	require.NoError(t, err)

	report, err := r.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Files[0].Err, ast.ErrHostNotRegistered)
}

func TestRunner_PreservesPermissions(t *testing.T) {
	rel := "src/test/java/CalculatorTest.java"
	_, paths := writeTree(t, map[string]string{rel: unitSource}, rel)
	require.NoError(t, os.Chmod(paths[0].Path, 0600))

	var hooked []string
	r, err := New(Config{Mode: ModeApply}, WithWriteHook(func(path string, content []byte) {
		hooked = append(hooked, path)
		assert.Equal(t, unitExpected, string(content))
	}))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), paths)
	require.NoError(t, err)

	info, err := os.Stat(paths[0].Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Equal(t, []string{paths[0].Path}, hooked)

	// No temporary files are left behind.
	entries, err := os.ReadDir(filepath.Dir(paths[0].Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunner_Metrics(t *testing.T) {
	files := map[string]string{
		"src/test/java/CalculatorTest.java": unitSource,
		"src/test/java/BrokenTest.java":     "class {",
		"src/main/java/Calculator.java":     productionSource,
	}
	_, paths := writeTree(t, files,
		"src/test/java/CalculatorTest.java",
		"src/test/java/BrokenTest.java",
		"src/main/java/Calculator.java",
	)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r, err := New(Config{Mode: ModeDryRun}, WithMetrics(m))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues(OutcomeChanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues(OutcomeUnchanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TagsInserted.WithLabelValues(string(recipe.TagUnit))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportsAdded))
}

func TestRunner_Rewrite(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)

	out, res, err := r.Rewrite(context.Background(), "src/test/java/com/example/CalculatorTest.java", []byte(unitSource))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, unitExpected, string(out))

	_, _, err = r.Rewrite(context.Background(), "Broken.java", []byte("class {"))
	assert.True(t, errors.Is(err, ast.ErrSyntax))
}

func TestRunner_OnDemandImportIsNotReportedAsAdded(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)

	src := "import org.junit.jupiter.api.*;\n\nclass CalculatorTest {}\n"
	out, res, err := r.Rewrite(context.Background(), "src/test/java/CalculatorTest.java", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "import org.junit.jupiter.api.*;\n\n@Tag(\"unit\")\nclass CalculatorTest {}\n", string(out))
	assert.True(t, res.Changed)
	assert.False(t, res.ImportAdded)
	require.Len(t, res.Tags, 1)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Mode: "sideways"})
	assert.Error(t, err)

	_, err = New(Config{Workers: -1})
	assert.Error(t, err)

	r, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, ModeDryRun, r.Mode())
}
