package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	hookMarkerBegin = "# BEGIN solvis hook"
	hookMarkerEnd   = "# END solvis hook"
	hookSection     = hookMarkerBegin + "\nsolvis link >/dev/null 2>&1 &\n" + hookMarkerEnd + "\n"
	hookShebang     = "#!/bin/sh\n"
)

func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Manage the git post-commit hook that re-links after each commit",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install a post-commit hook that runs solvis link",
		RunE: func(cmd *cobra.Command, args []string) error {
			gitDir, err := findGitDir()
			if err != nil {
				return err
			}
			path, installed, err := installHook(gitDir)
			if err != nil {
				return err
			}
			if !installed {
				fmt.Fprintln(cmd.OutOrStdout(), "solvis hook is already installed.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed post-commit hook at %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove",
		Short: "Remove the solvis section of the post-commit hook",
		RunE: func(cmd *cobra.Command, args []string) error {
			gitDir, err := findGitDir()
			if err != nil {
				return err
			}
			path, removed, err := removeHook(gitDir)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "No solvis hook found.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed solvis hook from %s\n", path)
			return nil
		},
	})
	return cmd
}

// installHook appends the solvis section to gitDir's post-commit hook,
// creating the hook if needed. It reports false when already present.
func installHook(gitDir string) (string, bool, error) {
	hooks := filepath.Join(gitDir, "hooks")
	path := filepath.Join(hooks, "post-commit")
	if err := os.MkdirAll(hooks, 0o755); err != nil {
		return path, false, fmt.Errorf("create hooks directory: %w", err)
	}
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return path, false, fmt.Errorf("read hook file: %w", err)
	}
	content := string(existing)
	if strings.Contains(content, hookMarkerBegin) {
		return path, false, nil
	}
	switch {
	case content == "":
		content = hookShebang + "\n" + hookSection
	case strings.HasSuffix(content, "\n"):
		content += "\n" + hookSection
	default:
		content += "\n\n" + hookSection
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return path, false, fmt.Errorf("write hook file: %w", err)
	}
	return path, true, nil
}

// removeHook strips the solvis section. A hook left with only its shebang
// is deleted.
func removeHook(gitDir string) (string, bool, error) {
	path := filepath.Join(gitDir, "hooks", "post-commit")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return path, false, nil
	}
	if err != nil {
		return path, false, fmt.Errorf("read hook file: %w", err)
	}
	if !strings.Contains(string(data), hookMarkerBegin) {
		return path, false, nil
	}

	var kept []string
	inSection := false
	for _, line := range strings.Split(string(data), "\n") {
		switch strings.TrimSpace(line) {
		case hookMarkerBegin:
			inSection = true
			continue
		case hookMarkerEnd:
			inSection = false
			continue
		}
		if !inSection {
			kept = append(kept, line)
		}
	}
	cleaned := strings.Join(kept, "\n")
	if rest := strings.TrimSpace(cleaned); rest == "" || rest == strings.TrimSpace(hookShebang) {
		if err := os.Remove(path); err != nil {
			return path, false, fmt.Errorf("remove hook file: %w", err)
		}
		return path, true, nil
	}
	if err := os.WriteFile(path, []byte(cleaned), 0o755); err != nil {
		return path, false, fmt.Errorf("write hook file: %w", err)
	}
	return path, true, nil
}

// findGitDir walks up from the working directory to the nearest .git
// directory.
func findGitDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ".git")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("not inside a git repository")
		}
		dir = parent
	}
}
