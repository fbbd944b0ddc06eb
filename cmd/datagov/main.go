package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/audit"
	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/config"
	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/datagov"
	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/ratelimit"
)

var version = "1.0.0"

func main() {
	root := &cobra.Command{
		Use:     "datagov",
		Short:   "MCP server and CLI for the data.gov.in open data API",
		Version: version,
	}

	root.AddCommand(
		newMCPCmd(),
		newFetchCmd(),
		newFieldsCmd(),
		newAuditCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file when given, otherwise falls back to
// DATA_GOV_IN_* environment variables.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv(), nil
}

// buildClient assembles the API client with the optional Redis limiter and
// audit logger. The returned cleanup closes whatever was opened.
func buildClient(cfg *config.Config) (*datagov.Client, func(), error) {
	var opts []datagov.Option
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.RateLimit.RedisAddr != "" {
		rw, err := ratelimit.NewRedisWindow(ratelimit.RedisOptions{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		}, cfg.RateLimit.Calls, cfg.RateLimit.Period)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { _ = rw.Close() })
		opts = append(opts, datagov.WithLimiter(rw))
	}

	if cfg.Audit.Enabled {
		logger, err := audit.New(cfg.Audit)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open audit db: %w", err)
		}
		closers = append(closers, func() { _ = logger.Close() })
		opts = append(opts, datagov.WithAuditor(logger))
	}

	client, err := datagov.New(cfg, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return client, cleanup, nil
}
