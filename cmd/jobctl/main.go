// Command jobctl inspects and cleans up the job directories shared with the
// notebook worker.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"adbridge/internal/infra"
	"adbridge/internal/storage"
)

type rootOptions struct {
	root  string
	store *storage.JobStore
	log   zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "jobctl",
		Short:         "Inspect and prune ad generator jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			root := strings.TrimSpace(opts.root)
			appEnv := "development"
			if root == "" {
				_ = godotenv.Load()
				cfg, err := infra.LoadConfig()
				if err != nil {
					return err
				}
				root = cfg.JobRootPath
				appEnv = cfg.AppEnv
			}
			store, err := storage.NewJobStore(root)
			if err != nil {
				return err
			}
			opts.store = store
			opts.log = infra.NewLoggerTo(cmd.ErrOrStderr(), appEnv).With().Str("cmd", cmd.Name()).Logger()
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.root, "root", "", "job root directory (default: job_root_path from config)")

	cmd.AddCommand(newListCmd(opts), newShowCmd(opts), newPruneCmd(opts))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
