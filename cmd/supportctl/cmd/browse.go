package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/supportdesk/supportbot/engine/search"
)

func newOutlineCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "outline",
		Short: "List manual sections ordered by page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := e.backendFor(cmd.Context())
			if err != nil {
				return err
			}
			entries := b.Manual.Outline(cmd.Context())
			w := cmd.OutOrStdout()
			if e.opts.format == "json" {
				if entries == nil {
					entries = []search.OutlineEntry{}
				}
				return writeJSON(w, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, "no sections")
				return nil
			}
			for _, s := range entries {
				fmt.Fprintf(w, "p.%-4d %s (%s)\n", s.Page, s.Title, filepath.Base(s.FilePath))
			}
			return nil
		},
	}
}

func newSampleCmd(e *env) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Show a few FAQ entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			b, err := e.backendFor(cmd.Context())
			if err != nil {
				return err
			}
			return printOutcome(cmd.OutOrStdout(), e.opts.format, b.FAQ.Sample(cmd.Context(), count))
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of entries")
	return cmd
}
