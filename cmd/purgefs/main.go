// Command purgefs bulk-purges aged files from a directory tree, wired
// to internal/orchestrator. Flags and environment variables are bound
// through spf13/cobra and spf13/viper with a PURGEFS_ env prefix — the
// same pairing the teacher's sibling examples (ivoronin-dupedog,
// joshyorko-rcc) use for their CLI surfaces — since the teacher's own
// fast-file-deletion binary hand-rolls flag.Parse with no env-var layer
// at all (spec.md §6 requires one).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/purgefs/purgefs/internal/clock"
	"github.com/purgefs/purgefs/internal/config"
	"github.com/purgefs/purgefs/internal/logging"
	"github.com/purgefs/purgefs/internal/orchestrator"
	"github.com/purgefs/purgefs/internal/safety"
	"github.com/purgefs/purgefs/internal/stats"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

// run builds the CLI, executes it, and returns the process exit code:
// 0 success, 1 fatal config/validation error, 2 circuit-break abort
// (spec.md §6).
func run(args []string, stdin io.Reader, stdout io.Writer) int {
	v := viper.New()
	v.SetEnvPrefix("PURGEFS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var params config.Params
	var logLevel string
	var confirm, force bool
	parsed := false

	cmd := &cobra.Command{
		Use:          "purgefs PATH",
		Short:        "Bulk-purge aged files from a directory tree",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			for _, name := range []string{
				"max-age-days", "max-concurrency-scanning", "max-concurrency-deletion",
				"max-concurrency", "max-concurrent-subdirs", "task-batch-size",
				"memory-limit-mb", "dry-run", "remove-empty-dirs",
				"max-empty-dirs-to-delete", "dir-listings-per-second", "log-level", "confirm", "force",
			} {
				if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
					return err
				}
			}

			params = config.Params{
				Root:                 posArgs[0],
				MaxAgeDays:           v.GetFloat64("max-age-days"),
				ScanSlots:            v.GetInt("max-concurrency-scanning"),
				DeleteSlots:          v.GetInt("max-concurrency-deletion"),
				LegacyMaxConcurrency: v.GetInt("max-concurrency"),
				SubdirSlots:          v.GetInt("max-concurrent-subdirs"),
				TaskBatchSize:        v.GetInt("task-batch-size"),
				SoftMemoryLimitMB:    int64(v.GetInt("memory-limit-mb")),
				RemoveEmptyDirs:      v.GetBool("remove-empty-dirs"),
				MaxEmptyDirsPerRun:   v.GetInt("max-empty-dirs-to-delete"),
				DryRun:               v.GetBool("dry-run"),
				DirListingsPerSecond: v.GetFloat64("dir-listings-per-second"),
			}
			logLevel = v.GetString("log-level")
			confirm = v.GetBool("confirm")
			force = v.GetBool("force")
			parsed = true
			return nil
		},
	}

	cmd.Flags().Float64("max-age-days", 0, "files with mtime newer than this many days are preserved")
	cmd.Flags().Int("max-concurrency-scanning", 0, "scan-slots capacity (default 1000)")
	cmd.Flags().Int("max-concurrency-deletion", 0, "delete-slots capacity (default 1000)")
	cmd.Flags().Int("max-concurrency", 0, "deprecated: sets scan and delete slots to the same value")
	cmd.Flags().Int("max-concurrent-subdirs", 0, "subdir-slots capacity (default 100)")
	cmd.Flags().Int("task-batch-size", 0, "file-pipeline flush threshold (default 500)")
	cmd.Flags().Int("memory-limit-mb", 0, "soft memory limit in MB; 0 disables back-pressure")
	cmd.Flags().Bool("dry-run", false, "advance counters without mutating the filesystem")
	cmd.Flags().Bool("remove-empty-dirs", false, "remove directories left empty by the purge")
	cmd.Flags().Int("max-empty-dirs-to-delete", 0, "empty-dir reaper rate limit per run; 0 = unlimited")
	cmd.Flags().Float64("dir-listings-per-second", 0, "pace directory listings on EFS-class backends; 0 disables pacing")
	cmd.Flags().String("log-level", "info", "panic|fatal|error|warn|info|debug|trace")
	cmd.Flags().Bool("confirm", false, "require typing the root path back before a non-dry-run purge")
	cmd.Flags().Bool("force", false, "skip --confirm")

	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stdout)

	if err := cmd.Execute(); err != nil {
		if !parsed {
			fmt.Fprintln(stdout, err)
			return 1
		}
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger := logging.New(stdout, level)
	log := logging.WithLogger(logger, "purgefs")

	cfg, err := config.Build(params, clock.System{})
	if err != nil {
		log.WithError(err).Error("configuration rejected")
		return 1
	}

	if confirm && !cfg.DryRun {
		if !safety.Confirm(stdin, stdout, cfg.Root, cfg.DryRun, force) {
			fmt.Fprintln(stdout, "aborted: confirmation failed")
			return 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	st := orchestrator.Purge(ctx, cfg, clock.System{}, log)
	snap := st.Snapshot()
	log.WithFields(finalFields(snap)).Info("final")

	if snap.Phase == stats.PhaseAborted {
		return 2
	}
	return 0
}

func finalFields(s stats.Snapshot) logrus.Fields {
	return logrus.Fields{
		"phase":                s.Phase,
		"abort_reason":         s.AbortReason,
		"files_scanned":        s.FilesScanned,
		"files_to_purge":       s.FilesToPurge,
		"files_purged":         s.FilesPurged,
		"dirs_scanned":         s.DirsScanned,
		"symlinks_skipped":     s.SymlinksSkipped,
		"special_skipped":      s.SpecialFilesSkipped,
		"empty_dirs_found":     s.EmptyDirsFound,
		"empty_dirs_to_delete": s.EmptyDirsToDelete,
		"empty_dirs_deleted":   s.EmptyDirsDeleted,
		"errors":               s.Errors,
		"bytes_freed":          s.BytesFreed,
		"bytes_freed_human":    humanize.Bytes(uint64(s.BytesFreed)),
		"backpressure_events":  s.BackpressureEvents,
		"peak_memory":          s.PeakMemory,
		"peak_memory_human":    humanize.Bytes(uint64(s.PeakMemory)),
	}
}
