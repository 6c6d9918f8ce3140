// Package solc implements the parser backend that delegates to the solc
// compiler and decodes its compact JSON syntax tree.
package solc

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/obernardovieira/solvis/internal/ast"
	"github.com/obernardovieira/solvis/internal/parser"
)

// Runner executes the compiler and returns its standard output.
type Runner func(name string, args ...string) ([]byte, error)

// SolcParser parses files by running `solc --ast-compact-json`.
type SolcParser struct {
	// Path is the compiler binary. When empty it is chosen from the file's
	// pragma, falling back to `solc` on PATH.
	Path string
	// BasePath and Remappings are passed through to the compiler so that
	// non-relative imports can be loaded.
	BasePath   string
	Remappings []string

	run Runner
}

// NewParser creates a solc-backed parser.
func NewParser(path, basePath string, remappings []string) *SolcParser {
	return &SolcParser{Path: path, BasePath: basePath, Remappings: remappings, run: execRunner}
}

// WithRunner replaces the process runner, mainly for tests.
func (p *SolcParser) WithRunner(r Runner) *SolcParser {
	p.run = r
	return p
}

func (p *SolcParser) Backend() parser.Backend {
	return parser.BackendSolc
}

// ParseFile compiles filePath from disk. content must be the file's
// current text; it maps source offsets back to lines.
func (p *SolcParser) ParseFile(filePath string, content []byte) (*ast.SourceUnit, error) {
	bin := p.Path
	if bin == "" {
		bin = Locate(ExtractPragmaVersion(string(content)))
	}

	args := []string{"--ast-compact-json"}
	if p.BasePath != "" {
		args = append(args, "--base-path", p.BasePath)
	}
	args = append(args, p.Remappings...)
	args = append(args, filePath)

	out, err := p.run(bin, args...)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", bin, err)
	}
	return DecodeOutput(out, filePath, content)
}

func execRunner(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

var (
	pragmaRe  = regexp.MustCompile(`pragma\s+solidity\s+([^;]+);`)
	versionRe = regexp.MustCompile(`\d+\.\d+\.\d+`)
)

// ExtractPragmaVersion returns the highest exact version mentioned by the
// source's `pragma solidity` directives, or "" when there is none.
func ExtractPragmaVersion(source string) string {
	var versions []string
	for _, m := range pragmaRe.FindAllStringSubmatch(source, -1) {
		versions = append(versions, versionRe.FindAllString(m[1], -1)...)
	}
	if len(versions) == 0 {
		return ""
	}
	sort.Slice(versions, func(i, j int) bool {
		return compareVersions(versions[i], versions[j]) > 0
	})
	return versions[0]
}

func compareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < 3; i++ {
		var na, nb int
		if i < len(pa) {
			na, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			nb, _ = strconv.Atoi(pb[i])
		}
		if na != nb {
			return na - nb
		}
	}
	return 0
}

// Locate finds a compiler binary for version: `solc-<version>` on PATH,
// then a solc-select artifact, then plain `solc`.
func Locate(version string) string {
	if version == "" {
		return "solc"
	}
	name := "solc-" + version
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	if home, err := os.UserHomeDir(); err == nil {
		artifact := filepath.Join(home, ".solc-select", "artifacts", name, name)
		if info, err := os.Stat(artifact); err == nil && !info.IsDir() {
			return artifact
		}
	}
	return "solc"
}
