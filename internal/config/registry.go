package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

const registryFileName = ".solvis.conf"

// ProjectEntry is a project recorded by `solvis init`, so commands run from
// any subdirectory find its configuration.
type ProjectEntry struct {
	Name      string `yaml:"name"`
	Root      string `yaml:"root"`
	ConfigDir string `yaml:"config_dir"`
}

type registryFile struct {
	Projects []ProjectEntry `yaml:"projects"`
}

// RegistryPath returns the path to the per-user project registry.
func RegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, registryFileName)
}

// RegisterProject records root, replacing any entry with the same root.
// An empty name defaults to the root's base name.
func RegisterProject(name, root, configDir string) error {
	if name == "" {
		name = filepath.Base(root)
	}
	entries, err := readRegistry()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Root != root {
			kept = append(kept, e)
		}
	}
	kept = append(kept, ProjectEntry{Name: name, Root: root, ConfigDir: configDir})
	return writeRegistry(kept)
}

// LookupProject returns the registered project with the deepest root
// containing path.
func LookupProject(path string) (*ProjectEntry, bool) {
	entries, err := readRegistry()
	if err != nil {
		return nil, false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	var best *ProjectEntry
	for i := range entries {
		root, err := filepath.Abs(entries[i].Root)
		if err != nil {
			continue
		}
		if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
			continue
		}
		if best == nil || len(root) > len(best.Root) {
			e := entries[i]
			e.Root = root
			best = &e
		}
	}
	return best, best != nil
}

// ListProjects returns all registered projects.
func ListProjects() []ProjectEntry {
	entries, _ := readRegistry()
	return entries
}

func readRegistry() ([]ProjectEntry, error) {
	path := RegistryPath()
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project registry: %w", err)
	}
	var reg registryFile
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse project registry: %w", err)
	}
	return reg.Projects, nil
}

func writeRegistry(entries []ProjectEntry) error {
	path := RegistryPath()
	if path == "" {
		return errors.New("no home directory for project registry")
	}
	data, err := yaml.Marshal(&registryFile{Projects: entries})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
