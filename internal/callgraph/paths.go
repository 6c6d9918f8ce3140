package callgraph

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultDependencyRoot is where non-relative imports are looked up when no
// remapping applies.
const DefaultDependencyRoot = "node_modules"

// Remapping rewrites import paths starting with Prefix to Target. A non-empty
// Context limits it to importing files under that directory.
type Remapping struct {
	Context string
	Prefix  string
	Target  string
}

// ParseRemapping parses the `[context:]prefix=target` form used by solc and
// remappings.txt.
func ParseRemapping(s string) (Remapping, error) {
	s = strings.TrimSpace(s)
	lhs, target, ok := strings.Cut(s, "=")
	if !ok || lhs == "" {
		return Remapping{}, fmt.Errorf("invalid remapping %q", s)
	}
	var r Remapping
	if ctx, prefix, hasCtx := strings.Cut(lhs, ":"); hasCtx {
		r.Context, r.Prefix = ctx, prefix
	} else {
		r.Prefix = lhs
	}
	if r.Prefix == "" {
		return Remapping{}, fmt.Errorf("invalid remapping %q: empty prefix", s)
	}
	r.Target = target
	return r, nil
}

func (r Remapping) String() string {
	if r.Context != "" {
		return r.Context + ":" + r.Prefix + "=" + r.Target
	}
	return r.Prefix + "=" + r.Target
}

// ReadRemappingsFile reads one remapping per line from path. Blank lines and
// lines starting with # are skipped. A missing file yields no remappings.
func ReadRemappingsFile(path string) ([]Remapping, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open remappings: %w", err)
	}
	defer f.Close()

	var out []Remapping
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := ParseRemapping(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read remappings: %w", err)
	}
	return out, nil
}

// PathResolver maps import text to absolute file paths.
type PathResolver struct {
	// Root is the project root; relative remapping targets and the
	// dependency root are taken from here.
	Root string
	// DependencyRoot holds external packages, relative to Root unless
	// absolute.
	DependencyRoot string
	// Libs are extra directories searched after DependencyRoot, as with
	// foundry's `libs`.
	Libs       []string
	Remappings []Remapping
}

// NewPathResolver returns a resolver rooted at root with the default
// dependency root.
func NewPathResolver(root string) *PathResolver {
	return &PathResolver{Root: root, DependencyRoot: DefaultDependencyRoot}
}

// Resolve returns the absolute path of importPath as written in fromFile.
// Relative imports are resolved against fromFile's directory. Others go
// through the longest matching remapping, then the dependency root. The
// result is not checked for existence except to choose between search
// directories.
func (r *PathResolver) Resolve(importPath, fromFile string) (string, error) {
	if strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../") {
		return filepath.Abs(filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(importPath)))
	}
	if filepath.IsAbs(importPath) {
		return filepath.Clean(importPath), nil
	}

	if rm, ok := r.remap(importPath, fromFile); ok {
		return filepath.Abs(r.rooted(filepath.FromSlash(rm)))
	}

	depRoot := r.DependencyRoot
	if depRoot == "" {
		depRoot = DefaultDependencyRoot
	}
	primary := r.rooted(filepath.Join(depRoot, filepath.FromSlash(importPath)))
	if !exists(primary) {
		candidates := make([]string, 0, len(r.Libs)+1)
		for _, lib := range r.Libs {
			candidates = append(candidates, r.rooted(filepath.Join(lib, filepath.FromSlash(importPath))))
		}
		candidates = append(candidates, r.rooted(filepath.FromSlash(importPath)))
		for _, c := range candidates {
			if exists(c) {
				return filepath.Abs(c)
			}
		}
	}
	return filepath.Abs(primary)
}

// remap applies the longest-prefix remapping valid for fromFile.
func (r *PathResolver) remap(importPath, fromFile string) (string, bool) {
	matches := make([]Remapping, 0, len(r.Remappings))
	for _, rm := range r.Remappings {
		if !strings.HasPrefix(importPath, rm.Prefix) {
			continue
		}
		if rm.Context != "" && !r.inContext(fromFile, rm.Context) {
			continue
		}
		matches = append(matches, rm)
	}
	if len(matches) == 0 {
		return "", false
	}
	// Longest prefix wins; a longer context breaks ties.
	sort.SliceStable(matches, func(i, j int) bool {
		if len(matches[i].Prefix) != len(matches[j].Prefix) {
			return len(matches[i].Prefix) > len(matches[j].Prefix)
		}
		return len(matches[i].Context) > len(matches[j].Context)
	})
	best := matches[0]
	return best.Target + strings.TrimPrefix(importPath, best.Prefix), true
}

func (r *PathResolver) inContext(fromFile, context string) bool {
	rel := fromFile
	if r.Root != "" {
		if rr, err := filepath.Rel(r.Root, fromFile); err == nil {
			rel = rr
		}
	}
	return strings.HasPrefix(filepath.ToSlash(rel), strings.TrimSuffix(context, "/"))
}

func (r *PathResolver) rooted(p string) string {
	if filepath.IsAbs(p) || r.Root == "" {
		return p
	}
	return filepath.Join(r.Root, p)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// locateImport finds the import path belonging to a contract name: a file
// named exactly `<name>.sol` first, then any path containing name.
func locateImport(importPaths []string, name string) (string, bool) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	for _, p := range importPaths {
		if filepath.Base(p) == name+".sol" {
			return p, true
		}
	}
	for _, p := range importPaths {
		if strings.Contains(p, name) {
			return p, true
		}
	}
	return "", false
}
