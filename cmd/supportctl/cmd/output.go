package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/supportdesk/supportbot/engine/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

type outcomeJSON struct {
	Status  domain.SearchStatus   `json:"status"`
	Error   string                `json:"error,omitempty"`
	Results []domain.SearchResult `json:"results"`
}

// printOutcome renders a single-source search outcome.
func printOutcome(w io.Writer, format string, out domain.Outcome) error {
	if format == "json" {
		o := outcomeJSON{Status: out.Status, Results: out.Results}
		if out.Err != nil {
			o.Error = out.Err.Error()
		}
		if o.Results == nil {
			o.Results = []domain.SearchResult{}
		}
		return writeJSON(w, o)
	}
	switch out.Status {
	case domain.StatusFailed:
		fmt.Fprintf(w, "search failed: %v\n", out.Err)
		return nil
	case domain.StatusRejected:
		fmt.Fprintln(w, "query rejected: empty query")
		return nil
	}
	printResults(w, out.Results)
	return nil
}

func printResults(w io.Writer, results []domain.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. [%.3f] %s\n", i+1, r.Score, r.Source)
		for _, line := range strings.Split(r.Content, "\n") {
			fmt.Fprintf(w, "   %s\n", line)
		}
	}
}
