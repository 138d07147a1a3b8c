package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/supportdesk/supportbot/engine/domain"
)

type searchOptions struct {
	maxResults int
	minScore   float64
	keywords   bool
	pages      string
	section    bool
	smart      bool
}

func newSearchCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the FAQ, the manuals, or both",
	}
	cmd.AddCommand(newSearchFAQCmd(e))
	cmd.AddCommand(newSearchManualCmd(e))
	cmd.AddCommand(newSearchAllCmd(e))
	return cmd
}

func addScoreFlags(cmd *cobra.Command, opts *searchOptions) {
	cmd.Flags().IntVarP(&opts.maxResults, "max-results", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Minimum similarity (0 uses the configured default)")
}

func newSearchFAQCmd(e *env) *cobra.Command {
	var opts searchOptions
	cmd := &cobra.Command{
		Use:   "faq <query>",
		Short: "Search FAQ entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := e.backendFor(cmd.Context())
			if err != nil {
				return err
			}
			var out domain.Outcome
			if opts.keywords {
				out = b.FAQ.SearchByKeywords(cmd.Context(), args, opts.maxResults)
			} else {
				out = b.FAQ.Search(cmd.Context(), strings.Join(args, " "), opts.maxResults, opts.minScore)
			}
			return printOutcome(cmd.OutOrStdout(), e.opts.format, out)
		},
	}
	addScoreFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.keywords, "keywords", false, "Treat each argument as a keyword (uses the configured minimum score)")
	cmd.MarkFlagsMutuallyExclusive("keywords", "min-score")
	return cmd
}

func newSearchManualCmd(e *env) *cobra.Command {
	var opts searchOptions
	cmd := &cobra.Command{
		Use:   "manual <query>",
		Short: "Search manual pages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			var start, end int
			if opts.pages != "" {
				var err error
				if start, end, err = parsePageRange(opts.pages); err != nil {
					return err
				}
			}
			b, err := e.backendFor(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var out domain.Outcome
			switch {
			case opts.pages != "":
				out = b.Manual.SearchByPageRange(ctx, query, start, end, opts.maxResults)
			case opts.section:
				out = b.Manual.SearchBySection(ctx, query, opts.maxResults)
			default:
				out = b.Manual.Search(ctx, query, opts.maxResults, opts.minScore)
			}
			return printOutcome(cmd.OutOrStdout(), e.opts.format, out)
		},
	}
	addScoreFlags(cmd, &opts)
	cmd.Flags().StringVar(&opts.pages, "pages", "", "Restrict to a page range, e.g. 10-20")
	cmd.Flags().BoolVar(&opts.section, "section", false, "Treat the query as a section title")
	cmd.MarkFlagsMutuallyExclusive("pages", "section")
	return cmd
}

func newSearchAllCmd(e *env) *cobra.Command {
	var opts searchOptions
	cmd := &cobra.Command{
		Use:   "all <query>",
		Short: "Search both sources and merge by score",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := e.backendFor(cmd.Context())
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			w := cmd.OutOrStdout()
			if opts.smart {
				results, strategy := b.Fusion.SmartSearch(cmd.Context(), query, nil)
				if e.opts.format == "json" {
					return writeJSON(w, map[string]any{"strategy": strategy, "results": results})
				}
				fmt.Fprintf(w, "strategy: %s\n", strategy)
				printResults(w, results)
				return nil
			}
			maxTotal := opts.maxResults
			if maxTotal <= 0 {
				maxTotal = 5
			}
			results := b.Fusion.SearchRanked(cmd.Context(), query, maxTotal, opts.minScore)
			if e.opts.format == "json" {
				return writeJSON(w, results)
			}
			printResults(w, results)
			return nil
		},
	}
	addScoreFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.smart, "smart", false, "Pick the fusion strategy from the query, as the answer pipeline does")
	return cmd
}

// parsePageRange parses "a-b" or a single page "a".
func parsePageRange(s string) (int, int, error) {
	lo, hi, found := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("invalid page range %q", s)
	}
	if !found {
		return start, start, nil
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || end < start {
		return 0, 0, fmt.Errorf("invalid page range %q", s)
	}
	return start, end, nil
}
