package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"adbridge/internal/storage"
	"adbridge/pkg/zip"
)

func newPruneCmd(opts *rootOptions) *cobra.Command {
	var (
		olderThan time.Duration
		dryRun    bool
		archive   string
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete request, input and result files of old jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			cutoff := time.Now().Add(-olderThan)

			jobs, err := opts.store.Prune(cmd.Context(), cutoff, true)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to prune")
				return nil
			}

			if archive != "" {
				if err := writeArchive(archive, jobs); err != nil {
					return err
				}
				opts.log.Info().Str("archive", archive).Int("jobs", len(jobs)).Msg("archived jobs")
			}

			// Delete what was listed (and archived), not a fresh listing.
			if !dryRun {
				if err := opts.store.Remove(jobs); err != nil {
					return err
				}
			}
			for _, j := range jobs {
				fmt.Fprintln(cmd.OutOrStdout(), j.ID)
			}
			verb := "pruned"
			if dryRun {
				verb = "would prune"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d job(s) older than %s\n", verb, len(jobs), cutoff.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "prune jobs submitted longer ago than this")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be deleted without deleting")
	cmd.Flags().StringVar(&archive, "archive", "", "write the affected files to this zip before deleting")
	return cmd
}

// writeArchive stores each job file as requests/<name> or results/<name>.
func writeArchive(dest string, jobs []storage.JobInfo) error {
	var entries []zip.Entry
	for _, j := range jobs {
		for _, p := range j.Files() {
			entries = append(entries, zip.Entry{
				Name: path.Join(filepath.Base(filepath.Dir(p)), filepath.Base(p)),
				Path: p,
			})
		}
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := zip.Archive(f, entries); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return err
	}
	return f.Close()
}
