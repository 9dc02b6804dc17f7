package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"adbridge/internal/storage"
)

type jobDetail struct {
	storage.JobInfo `yaml:",inline"`
	Record          map[string]any `json:"record" yaml:"record"`
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Print a job record and its file locations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := opts.store.Status(args[0])
			if err != nil {
				return err
			}
			record, err := opts.store.Load(args[0])
			if err != nil {
				return err
			}
			detail := jobDetail{JobInfo: info, Record: record}

			switch output {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(detail)
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(detail); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unsupported output %q (want json or yaml)", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: json or yaml")
	return cmd
}
