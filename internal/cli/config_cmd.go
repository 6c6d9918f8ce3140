package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/obernardovieira/solvis/internal/config"
	"github.com/obernardovieira/solvis/internal/render"
)

// Style definitions for config view.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	labelStyle = lipgloss.NewStyle().
			Faint(true).
			Width(18)
	valueStyle = lipgloss.NewStyle()
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or edit project configuration",
		Long: `View or edit solvis project configuration.

By default, displays the effective configuration. Use 'config edit' to
edit it interactively.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
	cmd.AddCommand(newConfigEditCmd())
	return cmd
}

func printConfig(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("solvis configuration"))
	fmt.Fprintln(out, headerStyle.Render(strings.Repeat("=", 20)))
	fmt.Fprintln(out)

	printSection(out, "Project")
	printKV(out, "Name", cfg.Project.Name)
	printKV(out, "Root", cfg.Project.Root)
	source := cfg.Path()
	if source == "" {
		source = "(defaults)"
	}
	printKV(out, "Config file", source)
	fmt.Fprintln(out)

	printSection(out, "Entries")
	printList(out, cfg.Entries)

	printSection(out, "Parsing")
	printKV(out, "Backend", cfg.Parser.Backend)
	if cfg.Parser.SolcPath != "" {
		printKV(out, "solc", cfg.Parser.SolcPath)
	}
	printKV(out, "Dependency root", cfg.Resolve.DependencyRoot)
	printKV(out, "Remappings file", cfg.Resolve.RemappingsFile)
	printKV(out, "Foundry config", cfg.Resolve.FoundryConfig)
	for _, r := range cfg.Resolve.Remappings {
		printKV(out, "Remapping", r)
	}
	fmt.Fprintln(out)

	printSection(out, "Output")
	printKV(out, "Directory", cfg.OutputDir())
	printKV(out, "Formats", strings.Join(cfg.Output.Formats, ", "))
	fmt.Fprintln(out)

	printSection(out, "Graph Storage")
	printKV(out, "Backend", cfg.Graph.Storage)
	switch cfg.Graph.Storage {
	case "embedded":
		printKV(out, "DB Path", cfg.DBPath())
	case "neo4j":
		printKV(out, "URI", cfg.Graph.Neo4jURI)
		printKV(out, "User", cfg.Graph.Neo4jUser)
	}
	fmt.Fprintln(out)

	printSection(out, "Watch Exclusions")
	printList(out, cfg.Watch.Exclude)
}

func printSection(out io.Writer, title string) {
	fmt.Fprintf(out, "  %s\n", headerStyle.Render(title))
}

func printKV(out io.Writer, label, value string) {
	fmt.Fprintf(out, "    %s%s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func printList(out io.Writer, items []string) {
	if len(items) == 0 {
		fmt.Fprintln(out, "    (none)")
	}
	for _, it := range items {
		fmt.Fprintf(out, "    %s\n", it)
	}
	fmt.Fprintln(out)
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit project configuration interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Path() == "" {
				return fmt.Errorf("no project config found; run 'solvis init' first")
			}

			out := cmd.OutOrStdout()
			saved, err := runConfigForm(cfg)
			if err != nil {
				return err
			}
			if !saved {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
			if err := config.WriteConfig(cfg, cfg.Path()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(out, "Configuration saved to %s\n", cfg.Path())
			return nil
		},
	}
}

// runConfigForm edits cfg in place. It returns false when the user cancels,
// in which case cfg is left unchanged.
func runConfigForm(cfg *config.Config) (bool, error) {
	projectName := cfg.Project.Name
	entries := strings.Join(cfg.Entries, "\n")
	backend := cfg.Parser.Backend
	dependencyRoot := cfg.Resolve.DependencyRoot
	formats := append([]string(nil), cfg.Output.Formats...)
	storage := cfg.Graph.Storage
	neo4jURI := cfg.Graph.Neo4jURI
	neo4jUser := cfg.Graph.Neo4jUser
	neo4jPassword := cfg.Graph.Neo4jPassword
	var confirm bool

	selected := make(map[string]bool, len(formats))
	for _, f := range formats {
		selected[f] = true
	}
	formatOptions := make([]huh.Option[string], len(render.Formats))
	for i, f := range render.Formats {
		formatOptions[i] = huh.NewOption(string(f), string(f)).Selected(selected[string(f)])
	}

	notEmpty := func(what string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s cannot be empty", what)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Value(&projectName).
				Validate(notEmpty("project name")),
			huh.NewText().
				Title("Entry files").
				Description("One path per line, relative to the project root").
				Value(&entries),
		).Title("Project"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Parser backend").
				Options(
					huh.NewOption("Built-in parser", "native"),
					huh.NewOption("solc compiler AST", "solc"),
				).
				Value(&backend),
			huh.NewInput().
				Title("Dependency root").
				Description("Where non-relative imports are looked up").
				Value(&dependencyRoot).
				Validate(notEmpty("dependency root")),
		).Title("Parsing"),

		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Output formats").
				Options(formatOptions...).
				Value(&formats),
			huh.NewSelect[string]().
				Title("Graph storage").
				Options(
					huh.NewOption("Embedded database", "embedded"),
					huh.NewOption("Neo4j", "neo4j"),
					huh.NewOption("None", "none"),
				).
				Value(&storage),
		).Title("Output"),

		huh.NewGroup(
			huh.NewInput().
				Title("Neo4j URI").
				Placeholder("bolt://localhost:7687").
				Value(&neo4jURI).
				Validate(notEmpty("Neo4j URI")),
			huh.NewInput().
				Title("Neo4j user").
				Value(&neo4jUser),
			huh.NewInput().
				Title("Neo4j password").
				EchoMode(huh.EchoModePassword).
				Value(&neo4jPassword),
		).Title("Neo4j").
			WithHideFunc(func() bool { return storage != "neo4j" }),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Save changes?").
				Value(&confirm).
				Affirmative("Save").
				Negative("Cancel"),
		).Title("Confirm"),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("interactive config edit: %w", err)
	}
	if !confirm {
		return false, nil
	}

	cfg.Project.Name = projectName
	cfg.Entries = splitLines(entries)
	cfg.Parser.Backend = backend
	cfg.Resolve.DependencyRoot = dependencyRoot
	cfg.Output.Formats = formats
	cfg.Graph.Storage = storage
	if storage == "neo4j" {
		cfg.Graph.Neo4jURI = neo4jURI
		cfg.Graph.Neo4jUser = neo4jUser
		cfg.Graph.Neo4jPassword = neo4jPassword
	}
	return true, nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
