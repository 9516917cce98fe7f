package main

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/pageview/pkg/pagination"
)

func newFetchAllCmd(root *rootOptions) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "fetch-all",
		Short: "Fetch every page and print the items as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := root.load()
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.Preload.Concurrency = concurrency
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			bf := pagination.NewBatchFetcher(a.client, pagination.Config{
				MaxConcurrency: cfg.Preload.Concurrency,
				Timeout:        cfg.Client.Timeout,
				PageSize:       cfg.Pager.PerPage,
			})

			items, perPage, err := bf.FetchAll(ctx, cfg.Pager.TargetID)
			if err != nil {
				return err
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			for _, item := range items {
				line, err := json.Marshal(item)
				if err != nil {
					return fmt.Errorf("failed to encode item: %w", err)
				}
				w.Write(line)
				w.WriteByte('\n')
			}
			if err := w.Flush(); err != nil {
				return err
			}

			a.logger.Info().
				Int("items", len(items)).
				Int("page_size", perPage).
				Msg("Fetched all pages")
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel page requests (overrides config)")

	return cmd
}
