package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obernardovieira/solvis/internal/config"
	"github.com/obernardovieira/solvis/internal/parser"
)

func newInitCmd() *cobra.Command {
	var (
		interactive bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .solvis.yaml config in the current directory",
		Long: `Initialize a solvis project in the current directory.

The project layout is inspected to pre-fill the config: Foundry projects
(foundry.toml) resolve imports through lib/ and their remappings, Hardhat
and npm projects through node_modules/. Solidity files under src/ or
contracts/ become the entry files.

The project is also registered in ~/.solvis.conf so commands run from any
subdirectory find its config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			configPath := filepath.Join(cwd, config.ConfigFileName)
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", configPath)
			}

			cfg, err := config.Default()
			if err != nil {
				return err
			}
			cfg.Project.Name = filepath.Base(cwd)
			layout := detectLayout(cwd)
			layout.apply(cfg)

			out := cmd.OutOrStdout()
			if interactive {
				saved, err := runConfigForm(cfg)
				if err != nil {
					return err
				}
				if !saved {
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			if err := config.WriteConfig(cfg, configPath); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			fmt.Fprintf(out, "Created %s\n", configPath)
			if layout.foundry {
				fmt.Fprintln(out, "  detected foundry.toml; remappings and libs are read from it")
			}
			fmt.Fprintf(out, "  %d entry file(s)\n", len(cfg.Entries))

			if err := config.RegisterProject(cfg.Project.Name, cwd, cwd); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to register project in %s: %v\n", config.RegistryPath(), err)
			} else {
				fmt.Fprintf(out, "Registered project %q in %s\n", cfg.Project.Name, config.RegistryPath())
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  1. Review 'entries' in .solvis.yaml")
			fmt.Fprintln(out, "  2. Add to .gitignore:")
			fmt.Fprintf(out, "       %s/\n", cfg.Output.Dir)
			fmt.Fprintln(out, "       .solvis/")
			fmt.Fprintln(out, "  3. Run 'solvis link' to build the call graphs")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "edit the detected settings in a form before writing")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

// layout is what init can infer from a project directory.
type layout struct {
	foundry        bool
	dependencyRoot string
	entries        []string
}

// sourceDirs are searched for entry files, first match wins.
var sourceDirs = []string{"src", "contracts"}

func detectLayout(root string) layout {
	var l layout
	if _, err := os.Stat(filepath.Join(root, "foundry.toml")); err == nil {
		l.foundry = true
		l.dependencyRoot = "lib"
	} else if _, err := os.Stat(filepath.Join(root, "node_modules")); err == nil {
		l.dependencyRoot = "node_modules"
	}

	for _, dir := range sourceDirs {
		l.entries = solidityFiles(root, dir)
		if len(l.entries) > 0 {
			break
		}
	}
	return l
}

func (l layout) apply(cfg *config.Config) {
	if l.dependencyRoot != "" {
		cfg.Resolve.DependencyRoot = l.dependencyRoot
	}
	cfg.Entries = l.entries
}

// solidityFiles lists .sol files under root/dir relative to root, skipping
// tests, scripts and interface-only directories.
func solidityFiles(root, dir string) []string {
	var out []string
	err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case "test", "tests", "script", "interfaces", "mocks":
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !isSolidity(name) || strings.HasSuffix(name, ".t.sol") || strings.HasSuffix(name, ".s.sol") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	sort.Strings(out)
	return out
}

func isSolidity(name string) bool {
	for _, ext := range parser.FileExtensions {
		if filepath.Ext(name) == ext {
			return true
		}
	}
	return false
}
