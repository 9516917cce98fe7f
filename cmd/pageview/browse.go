package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/pageview/internal/config"
	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/client"
	"github.com/Sternrassler/pageview/pkg/logging"
	"github.com/Sternrassler/pageview/pkg/pager"
	"github.com/Sternrassler/pageview/pkg/pagination"
	"github.com/Sternrassler/pageview/pkg/window"
)

type browseOptions struct {
	preload bool
	perPage int
	fields  []string
	logFile string
}

func newBrowseCmd(root *rootOptions) *cobra.Command {
	opts := &browseOptions{}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Page through a collection in the terminal",
		Long: `Browse fetches the first page of the configured collection and shows it
with a pagination bar. Pages are fetched on demand and kept in memory, so
returning to a page does not hit the network again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.preload, "preload", false, "fetch every page before showing the first")
	cmd.Flags().IntVar(&opts.perPage, "per-page", 0, "items per page (overrides config)")
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "gjson paths shown as table columns")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write logs to this file while the browser runs")

	return cmd
}

func runBrowse(ctx context.Context, root *rootOptions, opts *browseOptions) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	if opts.preload {
		cfg.Preload.Enabled = true
	}
	if opts.perPage > 0 {
		cfg.Pager.PerPage = opts.perPage
	}
	fields := splitFields(opts.fields)

	// The terminal belongs to the browser; logs go to a file or nowhere.
	logCfg := cfg.Logging()
	logCfg.Output = io.Discard
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logCfg.Output = f
	}
	logging.Setup(logCfg)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stale, err := cfg.StalePolicy()
	if err != nil {
		return err
	}

	renderer := newTUIRenderer()
	registry := pager.NewRegistry(a.client, renderer, pager.WithStalePolicy(stale))
	defer registry.Close()

	items, nav, err := openTarget(ctx, cfg, a.client, registry, fields)
	if err != nil {
		return err
	}

	id := cfg.Pager.TargetID
	model := newBrowseModel(id, cfg.Source.URL, fields, items, nav, func(page int) tea.Cmd {
		return func() tea.Msg {
			if err := registry.Navigate(id, page); err != nil {
				return errMsg{targetID: id, page: page, err: err}
			}
			return nil
		}
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan struct{})
	go renderer.pump(done, program.Send)
	defer close(done)

	if _, err := program.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("browser failed: %w", err)
	}
	return nil
}

// openTarget registers the configured target and returns what is on screen
// for page 1. Preloaded targets render page 1 through the registry's renderer,
// so no items are returned for them.
func openTarget(ctx context.Context, cfg *config.Config, c *client.Client, registry *pager.Registry, fields []string) ([]cache.Item, window.NavBar, error) {
	typ, err := cfg.CacheType()
	if err != nil {
		return nil, window.NavBar{}, err
	}

	var heading cache.Item
	if typ == cache.TypeTabular && len(fields) > 0 {
		heading = headingRow{fields: fields}
	}

	id := cfg.Pager.TargetID

	if cfg.Preload.Enabled {
		bf := pagination.NewBatchFetcher(c, pagination.Config{
			MaxConcurrency: cfg.Preload.Concurrency,
			Timeout:        cfg.Client.Timeout,
			PageSize:       cfg.Pager.PerPage,
		})
		all, perPage, err := bf.FetchAll(ctx, id)
		if err != nil {
			return nil, window.NavBar{}, fmt.Errorf("failed to preload %s: %w", id, err)
		}
		nav, err := registry.InitializePreloaded(ctx, id, typ, all, perPage, heading)
		if err != nil {
			return nil, window.NavBar{}, err
		}
		return nil, nav, nil
	}

	first, err := c.FetchFirst(ctx, id, cfg.Pager.PerPage)
	if err != nil {
		return nil, window.NavBar{}, fmt.Errorf("failed to fetch first page: %w", err)
	}

	nav, err := registry.InitializeFromPage(ctx, id, typ, first, cfg.Pager.PerPage, heading)
	if err != nil {
		return nil, window.NavBar{}, err
	}

	items := first.Items
	if heading != nil {
		items = append([]cache.Item{heading}, first.Items...)
	}
	return items, nav, nil
}

// splitFields trims and drops empty entries of a comma separated flag value.
func splitFields(values []string) []string {
	var out []string
	for _, v := range values {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}
