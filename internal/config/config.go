// Package config handles configuration loading and validation for solvis.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile is the default configuration file name (without extension).
	DefaultConfigFile = ".solvis"
	// DefaultConfigType is the default configuration file type.
	DefaultConfigType = "yaml"
	// ConfigFileName is the file `init` writes.
	ConfigFileName = DefaultConfigFile + "." + DefaultConfigType
)

// Config holds all configuration for solvis.
type Config struct {
	// Project contains project metadata.
	Project ProjectConfig `mapstructure:"project" yaml:"project"`
	// Entries lists the entry .sol files linked when none are given on the
	// command line.
	Entries []string `mapstructure:"entries" yaml:"entries"`
	Parser  ParserConfig  `mapstructure:"parser" yaml:"parser"`
	Resolve ResolveConfig `mapstructure:"resolve" yaml:"resolve"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Graph   GraphConfig   `mapstructure:"graph" yaml:"graph"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// path is the config file the values were read from, if any.
	path string
}

// ProjectConfig holds project metadata.
type ProjectConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	// Root is the project root that remappings and the dependency root are
	// relative to. Defaults to the config file's directory.
	Root string `mapstructure:"root" yaml:"root,omitempty"`
}

// ParserConfig selects the Solidity front end.
type ParserConfig struct {
	// Backend is "native" or "solc".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// SolcPath overrides solc discovery.
	SolcPath string `mapstructure:"solc_path" yaml:"solc_path,omitempty"`
}

// ResolveConfig controls import path resolution.
type ResolveConfig struct {
	DependencyRoot string   `mapstructure:"dependency_root" yaml:"dependency_root"`
	Remappings     []string `mapstructure:"remappings" yaml:"remappings,omitempty"`
	// RemappingsFile is read when present; missing files are ignored.
	RemappingsFile string `mapstructure:"remappings_file" yaml:"remappings_file,omitempty"`
	// FoundryConfig is a foundry.toml whose remappings and libs are used
	// when present.
	FoundryConfig string `mapstructure:"foundry_config" yaml:"foundry_config,omitempty"`
}

// OutputConfig controls rendered output files.
type OutputConfig struct {
	Dir     string   `mapstructure:"dir" yaml:"dir"`
	Formats []string `mapstructure:"formats" yaml:"formats"`
}

// GraphConfig holds call graph storage configuration.
type GraphConfig struct {
	// Storage is "embedded", "neo4j" or "none".
	Storage       string `mapstructure:"storage" yaml:"storage"`
	DBPath        string `mapstructure:"db_path" yaml:"db_path,omitempty"`
	Neo4jURI      string `mapstructure:"neo4j_uri" yaml:"neo4j_uri,omitempty"`
	Neo4jUser     string `mapstructure:"neo4j_user" yaml:"neo4j_user,omitempty"`
	Neo4jPassword string `mapstructure:"neo4j_password" yaml:"neo4j_password,omitempty"`
}

// WatchConfig holds file watching configuration.
type WatchConfig struct {
	// Exclude lists glob patterns to exclude from watching.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
	// DebounceMS is the quiet period before a change triggers a re-link.
	DebounceMS int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Path returns the config file the configuration was read from, or "".
func (c *Config) Path() string { return c.path }

// Load loads configuration from file, environment variables, and defaults.
// The file named by the global `config_file` key wins; otherwise
// .solvis.yaml in the working directory, then the registered project
// containing it.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return load(viper.GetViper().GetString("config_file"), wd)
}

func load(configFile, dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	switch {
	case configFile != "":
		v.SetConfigFile(configFile)
	default:
		v.SetConfigName(DefaultConfigFile)
		v.SetConfigType(DefaultConfigType)
		v.AddConfigPath(dir)
		if entry, ok := LookupProject(dir); ok {
			v.AddConfigPath(entry.ConfigDir)
		}
	}

	v.SetEnvPrefix("SOLVIS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.path = v.ConfigFileUsed()
	if cfg.Project.Root == "" {
		if cfg.path != "" {
			cfg.Project.Root = filepath.Dir(cfg.path)
		} else {
			cfg.Project.Root = dir
		}
	}
	var err error
	cfg.Project.Root, err = filepath.Abs(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Parser.Backend {
	case "native", "solc":
	default:
		return fmt.Errorf("parser backend must be 'native' or 'solc', got %q", c.Parser.Backend)
	}

	for _, f := range c.Output.Formats {
		switch f {
		case "edgebundle", "gnn", "json":
		default:
			return fmt.Errorf("output format must be 'edgebundle', 'gnn' or 'json', got %q", f)
		}
	}

	switch c.Graph.Storage {
	case "embedded", "neo4j", "none":
	default:
		return fmt.Errorf("graph storage must be 'embedded', 'neo4j' or 'none', got %q", c.Graph.Storage)
	}
	if c.Graph.Storage == "neo4j" && c.Graph.Neo4jURI == "" {
		return fmt.Errorf("neo4j_uri is required when graph storage is 'neo4j'")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch debounce must not be negative")
	}
	return nil
}

// DBPath returns the embedded store location, relative paths taken from
// the project root.
func (c *Config) DBPath() string {
	return c.abs(c.Graph.DBPath)
}

// OutputDir returns the output directory, relative paths taken from the
// project root.
func (c *Config) OutputDir() string {
	return c.abs(c.Output.Dir)
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("project.name", "")
	v.SetDefault("entries", []string{})

	v.SetDefault("parser.backend", "native")

	v.SetDefault("resolve.dependency_root", "node_modules")
	v.SetDefault("resolve.remappings_file", "remappings.txt")
	v.SetDefault("resolve.foundry_config", "foundry.toml")

	v.SetDefault("output.dir", "solvis-out")
	v.SetDefault("output.formats", []string{"edgebundle", "gnn"})

	v.SetDefault("graph.storage", "embedded")
	v.SetDefault("graph.db_path", ".solvis/graph.db")
	v.SetDefault("graph.neo4j_user", "neo4j")

	v.SetDefault("watch.exclude", []string{
		"**/node_modules/**",
		"**/.git/**",
		"**/out/**",
		"**/cache/**",
	})
	v.SetDefault("watch.debounce_ms", 300)

	v.SetDefault("log.level", "info")
}
