package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"potluck/internal/service"
)

func snapshotCmd() *cobra.Command {
	var (
		output string
		count  int
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write the latest articles to a static JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := service.WriteSnapshot(cmd.Context(), a.reader, output, count)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d articles to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "public/data/latest.json", "output file")
	cmd.Flags().IntVarP(&count, "count", "n", 20, "number of articles")
	return cmd
}
