package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		offset     int
		filters    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "fetch <resource-id>",
		Short: "Fetch records from a dataset and print them as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			client, cleanup, err := buildClient(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := client.GetResource(cmd.Context(), args[0], filters, offset, limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(data); err != nil {
				return fmt.Errorf("encode output: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().IntVar(&limit, "limit", 0, "max records to return (0 uses the configured default)")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "field filter as field=value (repeatable)")

	return cmd
}
