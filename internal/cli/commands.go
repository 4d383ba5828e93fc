package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	oaf "github.com/hugr-lab/oaf-go"
	"github.com/hugr-lab/oaf-go/cql2"
	"github.com/hugr-lab/oaf-go/filter"
)

func newCollectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections of the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				colls, err := a.service.ListCollections(ctx)
				if err != nil {
					return err
				}
				return a.renderCollections(cmd.OutOrStdout(), colls)
			})
		},
	}
}

func newCollectionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collection <id>",
		Short: "Describe one collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				coll, err := a.service.GetCollection(ctx, args[0])
				if err != nil {
					return err
				}
				return a.renderCollection(cmd.OutOrStdout(), coll)
			})
		},
	}
}

type itemsOptions struct {
	limit     int
	offset    int
	bulk      bool
	filter    string
	filterCRS string
	crs       string
}

func newItemsCommand() *cobra.Command {
	opts := &itemsOptions{}

	cmd := &cobra.Command{
		Use:   "items <collection>",
		Short: "Retrieve the features of a collection",
		Long: `Retrieve a page of features, or all of them with --bulk.

The filter is a JSON filter tree, given inline or as @file. A bare
predicate such as {"spatial": {...}} is accepted as the whole filter.`,
		Example: `  # First ten features
  oafctl items stations --limit 10

  # Features intersecting a bounding box
  oafctl items stations --filter '{"spatial":{"op":"S_INTERSECTS","args":[{"property":"geom"},{"bbox":[5,47,6,48]}]}}'

  # Filter read from a file, all matches as GeoJSON
  oafctl items stations --filter @filter.json --bulk -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				return a.items(ctx, cmd, args[0], opts)
			})
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", 10, "page size")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "start index")
	cmd.Flags().BoolVar(&opts.bulk, "bulk", false, "return all matching features")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "JSON filter tree, inline or @file")
	cmd.Flags().StringVar(&opts.filterCRS, "filter-crs", "", "CRS of filter geometries (default CRS84)")
	cmd.Flags().StringVar(&opts.crs, "crs", "", "CRS of returned geometries")

	return cmd
}

func (a *app) items(ctx context.Context, cmd *cobra.Command, collectionID string, opts *itemsOptions) error {
	req := oaf.FeaturesRequest{
		Limit:       opts.limit,
		Offset:      opts.offset,
		Bulk:        opts.bulk,
		ResponseCRS: opts.crs,
		Params:      url.Values{},
	}

	if opts.filter != "" {
		text, err := readFilter(opts.filter)
		if err != nil {
			return err
		}
		pred, err := a.translate(ctx, collectionID, text, opts.filterCRS)
		if err != nil {
			return err
		}
		req.Filter = pred
		req.Params.Set("filter", string(text))
		if opts.filterCRS != "" {
			req.Params.Set("filter-crs", opts.filterCRS)
		}
	}
	if opts.crs != "" {
		req.Params.Set("crs", opts.crs)
	}

	res, err := a.service.RetrieveFeatures(ctx, collectionID, req)
	if err != nil {
		return err
	}
	return a.renderFeatures(cmd.OutOrStdout(), res)
}

func (a *app) translate(ctx context.Context, collectionID string, text []byte, filterCRS string) (filter.Predicate, error) {
	tree, err := cql2.ParseJSON(text)
	if err != nil {
		return nil, &oaf.InvalidParameterValueError{Parameter: "filter", Value: string(text), Err: err}
	}
	return a.service.TranslateFilter(ctx, collectionID, tree, filterCRS)
}

func readFilter(arg string) ([]byte, error) {
	path, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return []byte(arg), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter: %w", err)
	}
	return data, nil
}

func newItemCommand() *cobra.Command {
	var responseCRS string

	cmd := &cobra.Command{
		Use:   "item <collection> <featureId>",
		Short: "Retrieve one feature by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				res, err := a.service.RetrieveFeature(ctx, args[0], args[1], responseCRS)
				if err != nil {
					return err
				}
				return a.renderFeatures(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&responseCRS, "crs", "", "CRS of the returned geometry")

	return cmd
}

func newCRSCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "crs",
		Short: "List the reference systems accepted by crs and filter-crs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(_ context.Context, a *app) error {
				return a.renderCRS(cmd.OutOrStdout(), a.registry.List())
			})
		},
	}
}
