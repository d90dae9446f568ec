package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"archaeologist/internal/gateway/app"
)

func newPlansCmd(g *globalOptions) *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "List saved refactoring plans, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			stores, err := app.NewPlanStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			recs, err := stores.Gateway.List(cmd.Context(), repo)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No plans saved.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tREPO\tTITLE\tVULNS\tSAVED")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Repo, r.Title, r.VulnerabilityCount, r.Timestamp)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Only list plans for this source")
	return cmd
}
