package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var (
		source string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			deps, cleanup, err := opts.build(cmd.Context(), cfg, buildOptions{})
			defer cleanup()
			if err != nil {
				return err
			}

			runs, err := deps.store.ListSyncRuns(cmd.Context(), source, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSOURCE\tLISTED\tOK\tFAILED\tREJECTED\tNEW\tCLOSED\tGC\tERROR")
			for _, r := range runs {
				gc := r.GCStrategy
				if r.GCSkipped {
					gc = "skipped"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
					r.StartedAt.Format(time.DateTime), r.Source, r.Listed, r.Succeeded, r.Failed, r.Rejected, r.Created, r.Closed, gc, r.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "only show runs of this source")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
