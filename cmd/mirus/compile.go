package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/inodb/mirus/internal/compile"
	"github.com/inodb/mirus/internal/snapshot"
)

func newCompileCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a release into the snapshot cache",
		Long: `Compile parses the organism list, sequence records, genome tables,
high-confidence list and structures of a release and writes the snapshot
cache. Queries compile automatically on first use; run this to rebuild.`,
		Example: `  mirus compile --release 22.1 --source dir --source-root /data/mirbase
  mirus compile --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := openOptions(cmd.Context(), logger)
			if err != nil {
				return err
			}

			snap := snapshot.New(opts.CacheDir, opts.Version)
			if snap.Complete() && !force {
				statusf(cmd, "Snapshot for %s already present in %s (use --force to rebuild)", opts.Version, snap.Dir())
				return nil
			}
			if err := snap.Clear(); err != nil {
				return fmt.Errorf("clear snapshot: %w", err)
			}

			statusf(cmd, "Compiling miRBase %s...", opts.Version)
			stats, err := compile.Compile(cmd.Context(), compile.Options{
				Version:  opts.Version,
				CacheDir: opts.CacheDir,
				LogDir:   opts.LogDir,
				Source:   opts.Source,
				Workers:  opts.Workers,
				Logger:   logger,
			})
			if err != nil {
				var se *compile.StageError
				if errors.As(err, &se) && se.LogPath != "" {
					warnf(cmd, "Error log written to %s", se.LogPath)
				}
				return err
			}
			// a snapshot that compiles but fails the merge pass is unusable
			if _, err := compile.Load(compile.Options{Version: opts.Version, CacheDir: opts.CacheDir}); err != nil {
				return err
			}

			statusf(cmd, "Compiled in %s", stats.Duration.Round(time.Millisecond))
			return writeOutput(cmd, stats)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even if a snapshot exists")
	return cmd
}
