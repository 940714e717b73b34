package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clinic/analytics/internal/config"
	"github.com/clinic/analytics/internal/platform/blobstore"
)

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived reports",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			location, _ := cmd.Flags().GetString("archive")
			prefix, _ := cmd.Flags().GetString("prefix")
			if location == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				location = cfg.ReportArchiveURL
			}
			if location == "" {
				return fmt.Errorf("--archive or REPORT_ARCHIVE_URL is required")
			}

			store, err := blobstore.Open(cmd.Context(), location)
			if err != nil {
				return err
			}
			items, err := store.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tCREATED")
			for _, m := range items {
				fmt.Fprintf(w, "%s\t%d\t%s\n", m.Key, m.Size, m.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().String("archive", "", "Archive location (defaults to REPORT_ARCHIVE_URL)")
	listCmd.Flags().String("prefix", "", "Only list keys under this prefix, e.g. a clinic id")

	cmd.AddCommand(listCmd)
	return cmd
}
