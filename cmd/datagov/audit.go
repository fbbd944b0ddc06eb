package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/audit"
	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/models"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the request audit log",
	}

	cmd.AddCommand(
		newAuditListCmd(),
		newAuditStatsCmd(),
		newAuditCleanupCmd(),
	)
	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		configPath string
		resource   string
		requestID  string
		since      string
		errorsOnly bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent request log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.RequestQueryOpts{
				ResourceID: resource,
				RequestID:  requestID,
				ErrorsOnly: errorsOnly,
				Limit:      limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatRequestEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&resource, "resource", "", "filter by resource ID")
	cmd.Flags().StringVar(&requestID, "request-id", "", "filter by request ID")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&errorsOnly, "errors", false, "only failed requests")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show request counts by resource and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(formatRequestStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func newAuditCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete request log entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d request log entries.\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func openAuditLogger(configPath string) (*audit.Logger, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	l, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatRequestEntries(entries []models.RequestEntry) string {
	if len(entries) == 0 {
		return "No request log entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-38s %6s %5s %8s %8s %-20s\n",
		"REQUEST ID", "RESOURCE", "STATUS", "CACHE", "ATTEMPTS", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 130) + "\n")
	for _, e := range entries {
		cache := ""
		if e.CacheHit {
			cache = "hit"
		}
		fmt.Fprintf(&b, "%-38s %-38s %6d %5s %8d %6dms %-20s\n",
			e.RequestID, e.ResourceID, e.StatusCode, cache, e.Attempts,
			e.LatencyMs, e.CreatedAt.Format("2006-01-02 15:04:05"))
		if e.Error != "" {
			fmt.Fprintf(&b, "    error: %s\n", e.Error)
		}
	}
	return b.String()
}

func formatRequestStats(stats []models.RequestStat) string {
	if len(stats) == 0 {
		return "No request stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-12s %8s %10s %8s\n", "RESOURCE", "DAY", "COUNT", "CACHE HITS", "ERRORS")
	b.WriteString(strings.Repeat("-", 82) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-38s %-12s %8d %10d %8d\n", s.ResourceID, s.Day, s.Count, s.CacheHits, s.Errors)
	}
	return b.String()
}
