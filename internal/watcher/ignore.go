package watcher

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Matcher decides which paths under a project root are ignored. Rules come
// from the configured exclude globs and every .gitignore below the root.
// Later rules override earlier ones, so a negated rule can re-include a path.
type Matcher struct {
	root  string
	rules []ignoreRule
}

type ignoreRule struct {
	base     string
	parts    []string
	anchored bool
	negate   bool
	dirOnly  bool
}

// NewMatcher builds a matcher for root from gitignore-style exclude
// patterns. Exclude patterns are relative to root.
func NewMatcher(root string, exclude []string) *Matcher {
	m := &Matcher{root: root}
	for _, p := range exclude {
		if r, ok := parseRule(p, root); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

// LoadGitIgnores appends the rules of every .gitignore under the root. Paths
// already ignored are not descended into.
func (m *Matcher) LoadGitIgnores() error {
	return filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || (path != m.root && m.Match(path, true)) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != ".gitignore" {
			return nil
		}
		rules, err := readGitIgnore(path)
		if err != nil {
			return nil
		}
		m.rules = append(m.rules, rules...)
		return nil
	})
}

// Match reports whether path is ignored. A path is ignored when it or one of
// its parent directories matches the last applicable rule.
func (m *Matcher) Match(path string, isDir bool) bool {
	ignored := false
	for _, r := range m.rules {
		if r.matches(path, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func readGitIgnore(path string) ([]ignoreRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Dir(path)
	var rules []ignoreRule
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if r, ok := parseRule(sc.Text(), base); ok {
			rules = append(rules, r)
		}
	}
	return rules, sc.Err()
}

func parseRule(line, base string) (ignoreRule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}
	r := ignoreRule{base: base}
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	// A slash anywhere but the end ties the pattern to base.
	r.anchored = strings.Contains(line, "/")
	r.parts = splitPath(line)
	if len(r.parts) == 0 {
		return ignoreRule{}, false
	}
	return r, true
}

func (r ignoreRule) matches(path string, isDir bool) bool {
	rel, err := filepath.Rel(r.base, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	parts := splitPath(rel)
	for i := 1; i <= len(parts); i++ {
		prefixIsDir := i < len(parts) || isDir
		if r.dirOnly && !prefixIsDir {
			continue
		}
		if r.anchored {
			if matchParts(r.parts, parts[:i]) {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(r.parts[0], parts[i-1]); ok {
			return true
		}
	}
	return false
}

// matchParts matches path components against pattern components, where
// "**" spans zero or more components.
func matchParts(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchParts(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	if ok, _ := filepath.Match(pattern[0], parts[0]); !ok {
		return false
	}
	return matchParts(pattern[1:], parts[1:])
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(filepath.ToSlash(p), "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
