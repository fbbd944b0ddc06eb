package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/models"
)

func newFieldsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "fields <resource-id>",
		Short: "Show the field names and types of a dataset",
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

			fields, err := client.GetResourceFields(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(formatFields(fields))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func formatFields(fields []models.Field) string {
	if len(fields) == 0 {
		return "No fields found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-40s %-15s\n", "FIELD", "TYPE")
	b.WriteString(strings.Repeat("-", 56) + "\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "%-40s %-15s\n", f.ID, f.Type)
	}
	return b.String()
}
