package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/obernardovieira/solvis/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var flags linkFlags

	cmd := &cobra.Command{
		Use:   "watch [files...]",
		Short: "Link entry files and re-link whenever the project changes",
		Long: `Link the entry files once, then watch the project root and re-link
after every burst of changes to .sol files, remappings.txt, foundry.toml or
the config file. Link failures are logged and watching continues.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			entries, err := entryFiles(cfg, args)
			if err != nil {
				return err
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := newLogger(cmd, cfg)
			s, err := newSession(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if s != nil {
					s.Close()
				}
			}()

			w, err := watcher.New(watcher.Options{
				Root:     cfg.Project.Root,
				Exclude:  cfg.Watch.Exclude,
				Debounce: time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
				Logger:   log,
			})
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer w.Close()

			out := cmd.OutOrStdout()
			relink := func() {
				results, err := s.linker.Link(ctx, entries)
				if len(results) > 0 {
					printSummary(out, results)
				}
				if err != nil && ctx.Err() == nil {
					log.Error("link failed", "error", err)
				}
			}

			changes, err := w.Start(ctx)
			if err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}
			fmt.Fprintf(out, "Watching %s (%d entry files)...\n", cfg.Project.Root, len(entries))
			relink()

			for c := range changes {
				log.Info("changes detected", "files", len(c.Paths))
				if touchesConfig(c.Paths) {
					// Remappings may have changed. The store is reopened, so
					// the old session has to be closed first.
					s.Close()
					if reloaded, err := loadConfig(); err == nil {
						flags.apply(reloaded)
						cfg = reloaded
					} else {
						log.Error("reload config", "error", err)
					}
					if s, err = newSession(ctx, cfg, log); err != nil {
						return err
					}
				}
				relink()
			}
			fmt.Fprintln(out, "\nStopped.")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func touchesConfig(paths []string) bool {
	for _, p := range paths {
		if filepath.Ext(p) != ".sol" {
			return true
		}
	}
	return false
}
