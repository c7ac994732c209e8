// Package tasks locates task pages: where they are served from, the URL of a
// single task, and which tasks a pattern selects.
package tasks

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// HTMLDirEnv overrides the local directory task pages are loaded from.
const HTMLDirEnv = "WOBENV_HTML_DIR"

// DefaultHTMLDir is used when neither a base URL nor HTMLDirEnv is set.
const DefaultHTMLDir = "html"

// TaskSubdir is the directory under the base URL holding the task pages.
const TaskSubdir = "miniwob"

// DefaultBaseURL returns a file:// URL for the local html directory.
func DefaultBaseURL() (string, error) {
	dir := os.Getenv(HTMLDirEnv)
	if dir == "" {
		dir = DefaultHTMLDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve html directory: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs) + "/"}
	return u.String(), nil
}

// ResolveBaseURL returns baseURL with a trailing slash, or the default
// local URL when it is empty.
func ResolveBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return DefaultBaseURL()
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL, nil
}

// URL returns the page URL of task under baseURL.
func URL(baseURL, task string) (string, error) {
	if task == "" || strings.ContainsAny(task, `/\?#`) {
		return "", fmt.Errorf("invalid task id: %q", task)
	}
	base, err := ResolveBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	return base + TaskSubdir + "/" + task + ".html", nil
}

// LocalDir returns the directory behind a file:// base URL.
func LocalDir(baseURL string) (string, error) {
	base, err := ResolveBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("base URL %q is not a local file URL", base)
	}
	return filepath.FromSlash(u.Path), nil
}

// Selector picks task ids by glob patterns, e.g. "click-*".
type Selector struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewSelector compiles include and exclude patterns. Exclusions win; no
// include patterns selects every task.
func NewSelector(include, exclude []string) (*Selector, error) {
	s := &Selector{}
	for _, pattern := range include {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid task pattern '%s': %w", pattern, err)
		}
		s.include = append(s.include, g)
	}
	for _, pattern := range exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		s.exclude = append(s.exclude, g)
	}
	return s, nil
}

// Matches reports whether task is selected.
func (s *Selector) Matches(task string) bool {
	for _, g := range s.exclude {
		if g.Match(task) {
			return false
		}
	}
	if len(s.include) == 0 {
		return true
	}
	for _, g := range s.include {
		if g.Match(task) {
			return true
		}
	}
	return false
}

// List returns the sorted ids of selected tasks found in htmlDir.
func (s *Selector) List(htmlDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(htmlDir, TaskSubdir))
	if err != nil {
		return nil, fmt.Errorf("failed to read task directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".html" {
			continue
		}
		id := strings.TrimSuffix(name, ".html")
		if s.Matches(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
