package rewriter

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude matches every Java source below a root.
var DefaultInclude = []string{"**/*.java"}

// DefaultExclude skips build output and hidden directories.
var DefaultExclude = []string{"**/build/**", "**/target/**", "**/out/**", "**/.*/**"}

// FileSet selects source files below a set of roots.
type FileSet struct {
	// Roots are directories, files or glob patterns.
	Roots []string
	// Include patterns are matched against slash-separated paths relative to
	// the root directory being walked.
	Include []string
	// Exclude patterns are matched the same way and win over Include.
	Exclude []string
}

// projectMarkers are build files that mark the directory source paths are
// made relative to.
var projectMarkers = []string{"pom.xml", "build.gradle", "build.gradle.kts", "settings.gradle", "settings.gradle.kts"}

// Source is a file selected for processing.
type Source struct {
	// Path is the absolute file path, used for I/O and reporting.
	Path string
	// Rel is the slash-separated path relative to the file's project
	// directory. It is the path the recipe classifies.
	Rel string
}

// NewSource returns the Source for the absolute file path found below root.
// Rel is computed from the nearest directory at or above root that holds a
// build file, or from root itself when there is none.
func NewSource(root, path string) Source {
	return sourceFrom(projectDir(root), path)
}

func sourceFrom(base, path string) Source {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(path)
	}
	return Source{Path: path, Rel: filepath.ToSlash(rel)}
}

// projectDir returns the nearest directory at or above dir holding one of
// projectMarkers, or dir when none does.
func projectDir(dir string) string {
	for d := dir; ; {
		for _, m := range projectMarkers {
			if _, err := os.Stat(filepath.Join(d, m)); err == nil {
				return d
			}
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir
		}
		d = parent
	}
}

// ValidatePatterns checks that every pattern is a valid doublestar pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern: %q", p)
		}
	}
	return nil
}

// ResolveFiles expands a FileSet to sources, sorted by absolute path and
// deduplicated. Roots naming a file are returned as is, without
// include/exclude filtering; their Rel starts from the file's directory.
//
// Examples:
//   - "." → every included file below the working directory
//   - "./services/*" → every included file below each matching directory
//   - "src/test/java/FooTest.java" → that file
func ResolveFiles(set FileSet) ([]Source, error) {
	include := set.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	exclude := set.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}
	if err := ValidatePatterns(include); err != nil {
		return nil, err
	}
	if err := ValidatePatterns(exclude); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []Source
	add := func(src Source) {
		if !seen[src.Path] {
			seen[src.Path] = true
			files = append(files, src)
		}
	}

	for _, root := range set.Roots {
		paths, err := resolvePattern(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %q: %w", root, err)
		}

		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				add(NewSource(filepath.Dir(p), p))
				continue
			}

			matches, err := walkDir(p, include, exclude)
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", p, err)
			}
			base := projectDir(p)
			for _, m := range matches {
				add(sourceFrom(base, m))
			}
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// walkDir returns the files below dir matching include and not exclude.
func walkDir(dir string, include, exclude []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			// A directory is pruned when everything below it is excluded.
			if matchAny(exclude, rel+"/x") && matchAny(exclude, rel+"/x/y") {
				return filepath.SkipDir
			}
			return nil
		}

		if matchAny(include, rel) && !matchAny(exclude, rel) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// resolvePattern expands a single root, which may be a glob, to absolute paths.
func resolvePattern(pattern string) ([]string, error) {
	if !containsGlob(pattern) {
		absPath, err := filepath.Abs(pattern)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(absPath); err != nil {
			return nil, err
		}
		return []string{absPath}, nil
	}

	absPattern, err := makeAbsolutePattern(pattern)
	if err != nil {
		return nil, err
	}

	// Use doublestar for ** support
	matches, err := doublestar.FilepathGlob(absPattern)
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no paths match pattern: %s", pattern)
	}
	return matches, nil
}

// containsGlob checks if a pattern contains glob characters.
func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// makeAbsolutePattern converts a relative pattern to absolute.
// Preserves glob characters in the pattern.
func makeAbsolutePattern(pattern string) (string, error) {
	if filepath.IsAbs(pattern) {
		return pattern, nil
	}

	globIdx := strings.IndexAny(pattern, "*?[{")
	if globIdx == -1 {
		return filepath.Abs(pattern)
	}

	// Split at the last separator before the glob
	dirPart, globPart := ".", "/"+pattern
	if lastSep := strings.LastIndexAny(pattern[:globIdx], "/"+string(filepath.Separator)); lastSep >= 0 {
		dirPart, globPart = pattern[:lastSep], pattern[lastSep:]
	}

	absDir, err := filepath.Abs(dirPart)
	if err != nil {
		return "", err
	}

	return absDir + filepath.FromSlash(globPart), nil
}

// Lookup returns the source for an absolute file path when set selects it.
// Glob roots are not expanded; only directory and file roots are considered.
func (s FileSet) Lookup(path string) (Source, bool) {
	include := s.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	exclude := s.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}

	for _, root := range s.Roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if absRoot == path {
			return NewSource(filepath.Dir(path), path), true
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		rel = filepath.ToSlash(rel)
		if matchAny(include, rel) && !matchAny(exclude, rel) {
			return NewSource(absRoot, path), true
		}
	}
	return Source{}, false
}

// WatchRoots returns the directories to watch for set: directory roots as
// is, and the parent directory of file roots.
func (s FileSet) WatchRoots() ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	for _, root := range s.Roots {
		paths, err := resolvePattern(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %q: %w", root, err)
		}
		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				p = filepath.Dir(p)
			}
			if !seen[p] {
				seen[p] = true
				dirs = append(dirs, p)
			}
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
