package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newsfeed/internal/adapter/fetcher"
	"newsfeed/internal/app"
	"newsfeed/internal/config"
	"newsfeed/internal/domain"
	"newsfeed/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "news",
		Short:         "News aggregator with full-text article enhancement",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to JSON or YAML config file")
	root.AddCommand(
		newServeCmd(&configPath),
		newEnhanceCmd(&configPath),
		newValidateCmd(&configPath),
	)
	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the feed worker and the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("could not start application: %w", err)
			}
			return a.Run(cmd.Context())
		},
	}
}

func newEnhanceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "enhance <url>",
		Short: "Fetch one article with the configured rules and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("could not load config: %w", err)
			}
			log := logger.NewWithWriters(cmd.ErrOrStderr(), cmd.ErrOrStderr(), cfg.Logger.Level)
			chain, err := app.BuildEnhancer(cfg.Enhancer, fetcher.NewHTTPFetcher(log), log)
			if err != nil {
				return err
			}
			item := &domain.Item{Link: args[0]}
			if !chain.Matches(item.URL()) {
				return fmt.Errorf("no rule matches %s", item.URL())
			}
			chain.Enhance(cmd.Context(), item)
			if item.Body() == "" {
				return fmt.Errorf("nothing extracted from %s", item.URL())
			}
			fmt.Fprintln(cmd.OutOrStdout(), item.Body())
			return nil
		},
	}
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config OK: %d feeds, %d xpath rules, database %s\n",
				len(cfg.App.FeedURLs), cfg.Enhancer.XPathRules.Len(), cfg.Database.Driver)
			return nil
		},
	}
}
