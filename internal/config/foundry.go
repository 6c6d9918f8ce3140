package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/obernardovieira/solvis/internal/callgraph"
)

// FoundryProfile is the subset of a foundry.toml profile used for import
// resolution.
type FoundryProfile struct {
	Src        string   `toml:"src"`
	Libs       []string `toml:"libs"`
	Remappings []string `toml:"remappings"`
}

type foundryFile struct {
	Profile map[string]FoundryProfile `toml:"profile"`
}

// ReadFoundryConfig returns the default profile of a foundry.toml. A missing
// file yields nil.
func ReadFoundryConfig(path string) (*FoundryProfile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read foundry config: %w", err)
	}
	var f foundryFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	p, ok := f.Profile["default"]
	if !ok {
		return &FoundryProfile{}, nil
	}
	return &p, nil
}

// PathResolver builds the import resolver for the project. Remappings are
// gathered from foundry.toml, then the remappings file, then the config
// itself; when two share a prefix and context the later one wins.
func (c *Config) PathResolver() (*callgraph.PathResolver, error) {
	r := callgraph.NewPathResolver(c.Project.Root)
	if c.Resolve.DependencyRoot != "" {
		r.DependencyRoot = c.Resolve.DependencyRoot
	}

	var all []callgraph.Remapping
	add := func(specs []string, source string) error {
		for _, s := range specs {
			rm, err := callgraph.ParseRemapping(s)
			if err != nil {
				return fmt.Errorf("%s: %w", source, err)
			}
			all = append(all, rm)
		}
		return nil
	}

	if c.Resolve.FoundryConfig != "" {
		fc, err := ReadFoundryConfig(c.abs(c.Resolve.FoundryConfig))
		if err != nil {
			return nil, err
		}
		if fc != nil {
			r.Libs = append(r.Libs, fc.Libs...)
			if err := add(fc.Remappings, c.Resolve.FoundryConfig); err != nil {
				return nil, err
			}
		}
	}
	if c.Resolve.RemappingsFile != "" {
		fromFile, err := callgraph.ReadRemappingsFile(c.abs(c.Resolve.RemappingsFile))
		if err != nil {
			return nil, err
		}
		all = append(all, fromFile...)
	}
	if err := add(c.Resolve.Remappings, "config remappings"); err != nil {
		return nil, err
	}

	// Keep the last remapping per (context, prefix).
	index := make(map[string]int)
	for _, rm := range all {
		key := rm.Context + ":" + rm.Prefix
		if i, ok := index[key]; ok {
			r.Remappings[i] = rm
			continue
		}
		index[key] = len(r.Remappings)
		r.Remappings = append(r.Remappings, rm)
	}
	return r, nil
}
