// Package discovery walks a target path and groups analyzable files by
// language category. Discovery order is preserved: it defines the output
// ordering for the rest of the pipeline.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Categories lists the supported language categories in declaration order.
// This order is stable and drives deterministic result ordering downstream.
var Categories = []string{"python", "javascript", "docker", "go"}

// Manifest is the result of file discovery: per-category file lists in
// discovery order, plus the ordered set of non-empty categories.
type Manifest struct {
	// Files maps category to file paths, insertion order = discovery order.
	Files map[string][]string

	// Root is the directory the walk started from.
	Root string
}

// TotalFiles returns the number of discovered files across all categories.
func (m *Manifest) TotalFiles() int {
	n := 0
	for _, files := range m.Files {
		n += len(files)
	}
	return n
}

// ActiveCategories returns the categories with at least one file, in
// declaration order.
func (m *Manifest) ActiveCategories() []string {
	var active []string
	for _, cat := range Categories {
		if len(m.Files[cat]) > 0 {
			active = append(active, cat)
		}
	}
	return active
}

// Error wraps a fatal discovery failure. Discovery is the only stage whose
// failure aborts a run.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("discovery failed at %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// alwaysSkipped are directories never worth walking regardless of ignore rules.
var alwaysSkipped = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
}

// Discover walks rootPath and categorizes every analyzable file. A file or
// directory matching the project's ignore rules is skipped. I/O errors during
// the walk are fatal and returned as *Error.
func Discover(rootPath string, extraExcludes []string) (*Manifest, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, &Error{Path: rootPath, Err: err}
	}

	manifest := &Manifest{
		Files: make(map[string][]string),
		Root:  rootPath,
	}

	// Single-file target: categorize directly.
	if !info.IsDir() {
		if cat := categorize(rootPath); cat != "" {
			manifest.Files[cat] = append(manifest.Files[cat], rootPath)
		}
		return manifest, nil
	}

	ignorer := GetIgnoreRules(rootPath, extraExcludes)

	walkErr := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if alwaysSkipped[d.Name()] {
				return filepath.SkipDir
			}
			if ignorer != nil && ignorer.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if ignorer != nil && ignorer.MatchesPath(rel) {
			return nil
		}

		if cat := categorize(path); cat != "" {
			manifest.Files[cat] = append(manifest.Files[cat], path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, &Error{Path: rootPath, Err: walkErr}
	}

	// WalkDir visits lexically, but make the per-category order explicit so
	// two discoveries over the same tree always agree.
	for cat := range manifest.Files {
		sort.Strings(manifest.Files[cat])
	}

	return manifest, nil
}

// categorize maps a file path to its language category, or "" for files the
// engine does not analyze.
func categorize(path string) string {
	base := filepath.Base(path)
	if base == "Dockerfile" || strings.HasPrefix(base, "Dockerfile.") {
		return "docker"
	}
	if base == "go.mod" {
		return "go"
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return "python"
	case ".js", ".jsx", ".ts", ".tsx":
		return "javascript"
	case ".dockerfile":
		return "docker"
	case ".go":
		return "go"
	default:
		return ""
	}
}
