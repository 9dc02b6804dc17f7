package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"adbridge/internal/storage"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		pendingOnly bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submitted jobs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := opts.store.List(cmd.Context())
			if err != nil {
				return err
			}
			if pendingOnly {
				filtered := jobs[:0]
				for _, j := range jobs {
					if !j.Done {
						filtered = append(filtered, j)
					}
				}
				jobs = filtered
			}
			if asJSON {
				if jobs == nil {
					jobs = []storage.JobInfo{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(jobs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "JOB ID\tMODE\tSTATUS\tSUBMITTED")
			for _, j := range jobs {
				status := "pending"
				if j.Done {
					status = "done"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.ID, j.Mode, status, j.SubmittedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "only jobs without a result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}
