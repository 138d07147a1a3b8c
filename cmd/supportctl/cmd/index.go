package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supportdesk/supportbot/engine/domain"
)

var errNeedConfirm = errors.New("refusing to delete without --yes")

func newIndexCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect or reset the vector collection",
	}
	cmd.AddCommand(newIndexCountCmd(e))
	cmd.AddCommand(newIndexDeleteCmd(e))
	return cmd
}

func newIndexCountCmd(e *env) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count indexed passages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter map[string]string
			switch domain.SourceKind(kind) {
			case "":
			case domain.KindFAQ, domain.KindManual:
				filter = map[string]string{"type": kind}
			default:
				return fmt.Errorf("unknown type %q (want faq or manual)", kind)
			}
			b, err := e.backendFor(cmd.Context())
			if err != nil {
				return err
			}
			n, err := b.Index.Count(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("count %s: %w", b.Index.Collection(), err)
			}
			w := cmd.OutOrStdout()
			if e.opts.format == "json" {
				return writeJSON(w, map[string]any{"collection": b.Index.Collection(), "type": kind, "count": n})
			}
			fmt.Fprintln(w, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "", "Only count one source: faq or manual")
	return cmd
}

func newIndexDeleteCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the whole collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errNeedConfirm
			}
			b, err := e.backendFor(cmd.Context())
			if err != nil {
				return err
			}
			if err := b.Index.DeleteCollection(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted collection %s\n", b.Index.Collection())
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
