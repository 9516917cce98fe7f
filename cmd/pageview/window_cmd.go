package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/pageview/pkg/window"
)

func newWindowCmd() *cobra.Command {
	var (
		total   int
		perPage int
		current int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Print the pagination bar for a page of a result set",
		Example: `  pageview window --total 20 --current 7
  pageview window --total 230 --per-page 25 --current 3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pages := total
			if perPage > 0 {
				pages = window.TotalPages(total, perPage)
			}
			if current < 1 || (pages > 0 && current > pages) {
				return fmt.Errorf("current page %d outside 1..%d", current, pages)
			}

			nav := window.Build(pages, current)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(nav)
			}

			_, err := fmt.Fprintln(out, formatNav(nav))
			return err
		},
	}

	cmd.Flags().IntVar(&total, "total", 0, "total pages, or total items with --per-page")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "items per page")
	cmd.Flags().IntVar(&current, "current", 1, "current page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the entries as JSON")
	_ = cmd.MarkFlagRequired("total")

	return cmd
}

// formatNav renders a nav bar as plain text with the active page in brackets.
func formatNav(nav window.NavBar) string {
	if nav.Empty() {
		return "(single page)"
	}
	parts := make([]string, 0, len(nav.Entries))
	for _, e := range nav.Entries {
		if e.IsActive {
			parts = append(parts, "["+e.Label+"]")
			continue
		}
		parts = append(parts, e.Label)
	}
	return strings.Join(parts, " ")
}
