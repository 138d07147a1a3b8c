package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/supportdesk/supportbot/engine/domain"
)

func newAskCmd(e *env) *cobra.Command {
	var showSources bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question with the full pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := svc.Answer(cmd.Context(), domain.Question{Question: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if e.opts.format == "json" {
				return writeJSON(w, resp)
			}
			fmt.Fprintln(w, resp.Answer)
			fmt.Fprintf(w, "\nconfidence: %.2f  time: %.2fs\n", resp.Confidence, resp.ProcessingTime)
			if showSources && len(resp.Sources) > 0 {
				fmt.Fprintln(w, "\nsources:")
				printResults(w, resp.Sources)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print the passages the answer was grounded on")
	return cmd
}

func newHealthCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the generator and both search sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			st := svc.Status(cmd.Context())
			w := cmd.OutOrStdout()
			if e.opts.format == "json" {
				return writeJSON(w, st)
			}
			fmt.Fprintf(w, "agent:     %s\n", st.AgentStatus)
			fmt.Fprintf(w, "generator: reachable=%t breaker=%s\n", st.GeneratorReachable, st.GeneratorBreaker)
			fmt.Fprintf(w, "faq:       %t\n", st.Search.FAQEngine)
			fmt.Fprintf(w, "manual:    %t\n", st.Search.ManualEngine)
			fmt.Fprintf(w, "overall:   %t\n", st.Search.Overall)
			return nil
		},
	}
}
