package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resourcesearch/internal/errors"
	"github.com/Aman-CERP/resourcesearch/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	data      []string
	resources []string
	format    string // "text", "json"
	stats     bool
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search resources loaded from data files",
		Long: `Load the given data files, index every resource they define and
print the documents matching the query.

An empty query ("") matches every document.

Examples:
  resourcesearch search --data docs.yaml "first doc"
  resourcesearch search --data docs.yaml --data notes.json --resource notes todo
  resourcesearch search --data docs.yaml --format json ""
  resourcesearch search --data docs.yaml --stats "first"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, g, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.data, "data", "d", nil, "Data file to load (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.resources, "resource", "r", nil, "Only search these resources (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "Print search statistics to stderr after the results")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, g *globalOptions, query string, opts searchOptions) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	logger := g.logger
	logger.Info("search_started", slog.String("query", query), slog.Int("files", len(opts.data)))

	rt, err := openRuntime(ctx, g.cfg, logger, opts.data)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	names := opts.resources
	if len(names) == 0 {
		names = rt.coord.ResourceNames()
	}

	for _, name := range names {
		if err := rt.coord.Search(ctx, name, query); err != nil {
			return err
		}
	}
	rt.coord.Wait()

	sets := make([]output.ResultSet, 0, len(names))
	for _, name := range names {
		st, ok := rt.coord.ResourceIndex(name)
		if !ok {
			return errors.ResourceNotFound(name)
		}
		if st.Err != nil {
			sets = append(sets, output.ResultSet{Resource: name, Query: query, Hits: []output.Hit{}, Error: st.Err.Error()})
			continue
		}
		sets = append(sets, rt.resolve(name, query, st.Result))
	}

	logger.Info("search_complete", slog.String("query", query), slog.Int("resources", len(sets)))
	if err := output.New(cmd.OutOrStdout()).Results(sets, format); err != nil {
		return err
	}
	if opts.stats {
		return output.New(cmd.ErrOrStderr()).Stats(rt.coord.Metrics().Snapshot(), format)
	}
	return nil
}
