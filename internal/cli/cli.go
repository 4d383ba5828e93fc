// Package cli provides the oafctl command-line interface: it loads a service
// configuration and runs collection and feature queries against it.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	oaf "github.com/hugr-lab/oaf-go"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/internal/config"
	"github.com/hugr-lab/oaf-go/internal/recovery"
	"github.com/hugr-lab/oaf-go/link"
	"github.com/hugr-lab/oaf-go/store"
)

// Version information (set at build time).
var Version = "0.1.0"

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

type options struct {
	configFile string
	output     string
}

// app is the per-invocation state built by the root command.
type app struct {
	service  *oaf.Service
	stores   *store.Router
	registry *crs.StaticRegistry
	logger   *slog.Logger
	output   string
}

type appKey struct{}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "oafctl",
		Short: "Query OGC API Features collections",
		Long: `oafctl loads a dataset configuration and runs collection and feature
queries against its stores. Filters are CQL2 trees in JSON form.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			if opts.output != FormatTable && opts.output != FormatJSON {
				return fmt.Errorf("unknown output format %q (available: %s, %s)", opts.output, FormatTable, FormatJSON)
			}
			a, err := newApp(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "oaf.yaml", "config file")
	rootCmd.PersistentFlags().String("base-url", "", "base URL of the service links")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", FormatTable, "output format (table|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{FormatTable, FormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newCollectionsCommand())
	rootCmd.AddCommand(newCollectionCommand())
	rootCmd.AddCommand(newItemsCommand())
	rootCmd.AddCommand(newItemCommand())
	rootCmd.AddCommand(newCRSCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func newApp(ctx context.Context, opts *options, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(opts.configFile, cmd.Root().PersistentFlags())
	if err != nil {
		return nil, err
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	reg := crs.DefaultRegistry()
	ds, err := cfg.BuildDataset(reg)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}
	defaultCRS, err := cfg.DefaultCRS(reg)
	if err != nil {
		return nil, fmt.Errorf("dataset.default_crs: %w", err)
	}
	links, err := link.NewBuilder(cfg.Dataset.BaseURL)
	if err != nil {
		return nil, err
	}

	stores, err := cfg.OpenStores(ctx, logger)
	if err != nil {
		return nil, err
	}

	svc, err := oaf.NewService(oaf.Config{
		Dataset:    ds,
		Stores:     stores,
		Links:      links,
		Registry:   reg,
		DefaultCRS: defaultCRS,
		Logger:     logger,
	})
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	return &app{service: svc, stores: stores, registry: reg, logger: logger, output: opts.output}, nil
}

// run calls fn with the app built by the root command and closes the
// stores afterwards.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		return fmt.Errorf("service not initialized")
	}
	defer func() {
		if err := recovery.RecoverToError(a.logger, "Close", a.stores.Close); err != nil {
			a.logger.Warn("Failed to close stores", "error", err)
		}
	}()
	return fn(cmd.Context(), a)
}
