package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool argument structs.

type datasetArgs struct {
	ResourceID string `json:"resource_id"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	Filters    string `json:"filters"`
}

type resourceArgs struct {
	ResourceID string `json:"resource_id"`
}

type paginateArgs struct {
	ResourceID string `json:"resource_id"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

type filterArgs struct {
	ResourceID string `json:"resource_id"`
	Field      string `json:"field"`
	Value      string `json:"value"`
	Limit      int    `json:"limit"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"datagov_get_dataset": handleGetDataset,
	"datagov_get_fields":  handleGetFields,
	"datagov_paginate":    handlePaginate,
	"datagov_summary":     handleSummary,
	"datagov_filter":      handleFilter,
	"datagov_cache_stats": handleCacheStats,
	"datagov_clear_cache": handleClearCache,
	"datagov_server_info": handleServerInfo,
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "datagov_get_dataset",
		Description: "Retrieve records from a dataset on data.gov.in, with optional pagination and filters.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"resource_id"},
			"properties": map[string]any{
				"resource_id": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the dataset resource",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of records to return (default: 10, max: 100)",
				},
				"offset": map[string]any{
					"type":        "integer",
					"description": "Number of records to skip for pagination (default: 0)",
				},
				"filters": map[string]any{
					"type":        "string",
					"description": `Optional JSON object of field filters, e.g. {"state": "Maharashtra"}`,
				},
			},
		},
	},
	{
		Name:        "datagov_get_fields",
		Description: "Get the field names and types of a dataset.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"resource_id"},
			"properties": map[string]any{
				"resource_id": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the dataset resource",
				},
			},
		},
	},
	{
		Name:        "datagov_paginate",
		Description: "Retrieve a specific page of a dataset with pagination metadata.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"resource_id"},
			"properties": map[string]any{
				"resource_id": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the dataset resource",
				},
				"page": map[string]any{
					"type":        "integer",
					"description": "Page number to retrieve, starting from 1",
				},
				"page_size": map[string]any{
					"type":        "integer",
					"description": "Number of records per page (default: 10, max: 100)",
				},
			},
		},
	},
	{
		Name:        "datagov_summary",
		Description: "Summarize a dataset: record count, field names, and a sample record.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"resource_id"},
			"properties": map[string]any{
				"resource_id": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the dataset resource",
				},
			},
		},
	},
	{
		Name:        "datagov_filter",
		Description: "Filter dataset records by a single field value.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"resource_id", "field", "value"},
			"properties": map[string]any{
				"resource_id": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the dataset resource",
				},
				"field": map[string]any{
					"type":        "string",
					"description": "The field name to filter on",
				},
				"value": map[string]any{
					"type":        "string",
					"description": "The value to match",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of matching records to return (default: 10)",
				},
			},
		},
	},
	{
		Name:        "datagov_cache_stats",
		Description: "Show response cache statistics (size, hits, misses, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "datagov_clear_cache",
		Description: "Clear all cached API responses.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "datagov_server_info",
		Description: "Show server version and active configuration.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
}

func jsonResult(v any) ToolCallResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Error encoding result: " + err.Error())
	}
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: string(data)}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleGetDataset(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args datasetArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.ResourceID == "" {
		return errorResult("resource_id is required")
	}

	var filters map[string]string
	if args.Filters != "" {
		if err := json.Unmarshal([]byte(args.Filters), &filters); err != nil {
			return errorResult(`Invalid filters format, expected a JSON object like {"field_name": "value"}`)
		}
	}

	data, err := s.client.GetResource(ctx, args.ResourceID, filters, args.Offset, args.Limit)
	if err != nil {
		return errorResult("Error retrieving dataset: " + err.Error())
	}

	return jsonResult(map[string]any{
		"resource_id":   args.ResourceID,
		"total_records": data.Total,
		"offset":        args.Offset,
		"limit":         args.Limit,
		"records":       data.Records,
		"fields":        data.FieldList(),
	})
}

func handleGetFields(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args resourceArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.ResourceID == "" {
		return errorResult("resource_id is required")
	}

	fields, err := s.client.GetResourceFields(ctx, args.ResourceID)
	if err != nil {
		return errorResult("Error retrieving fields: " + err.Error())
	}

	return jsonResult(map[string]any{
		"resource_id": args.ResourceID,
		"field_count": len(fields),
		"fields":      fields,
	})
}

func handlePaginate(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args paginateArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.ResourceID == "" {
		return errorResult("resource_id is required")
	}
	if args.Page == 0 {
		args.Page = 1
	}
	if args.Page < 1 {
		return errorResult("page must be >= 1")
	}
	if args.PageSize <= 0 {
		args.PageSize = s.client.Config().Page.DefaultLimit
	}

	offset := (args.Page - 1) * args.PageSize
	data, err := s.client.GetResource(ctx, args.ResourceID, nil, offset, args.PageSize)
	if err != nil {
		return errorResult("Error paginating dataset: " + err.Error())
	}

	totalPages := 1
	if data.Total > 0 {
		totalPages = (data.Total + args.PageSize - 1) / args.PageSize
	}

	return jsonResult(map[string]any{
		"resource_id": args.ResourceID,
		"pagination": map[string]any{
			"current_page":  args.Page,
			"page_size":     args.PageSize,
			"total_records": data.Total,
			"total_pages":   totalPages,
			"has_next":      args.Page < totalPages,
			"has_previous":  args.Page > 1,
		},
		"records": data.Records,
	})
}

func handleSummary(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args resourceArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.ResourceID == "" {
		return errorResult("resource_id is required")
	}

	data, err := s.client.GetResource(ctx, args.ResourceID, nil, 0, 1)
	if err != nil {
		return errorResult("Error getting summary: " + err.Error())
	}
	fields, err := s.client.GetResourceFields(ctx, args.ResourceID)
	if err != nil {
		return errorResult("Error getting summary: " + err.Error())
	}

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.ID
	}
	var sample map[string]any
	if len(data.Records) > 0 {
		sample = data.Records[0]
	}

	return jsonResult(map[string]any{
		"resource_id":   args.ResourceID,
		"total_records": data.Total,
		"field_count":   len(fields),
		"fields":        names,
		"sample_record": sample,
	})
}

func handleFilter(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args filterArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.ResourceID == "" {
		return errorResult("resource_id is required")
	}
	if args.Field == "" || args.Value == "" {
		return errorResult("field and value are required")
	}

	data, err := s.client.GetResource(ctx, args.ResourceID, map[string]string{args.Field: args.Value}, 0, args.Limit)
	if err != nil {
		return errorResult("Error filtering dataset: " + err.Error())
	}

	return jsonResult(map[string]any{
		"resource_id":     args.ResourceID,
		"filter":          map[string]string{args.Field: args.Value},
		"matched_records": len(data.Records),
		"records":         data.Records,
	})
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	stats, enabled := s.client.CacheStats()
	if !enabled {
		return jsonResult(map[string]any{
			"cache_enabled": false,
			"message":       "Caching is disabled",
		})
	}
	return jsonResult(map[string]any{
		"cache_enabled": true,
		"size":          stats.Size,
		"max_size":      stats.MaxSize,
		"hits":          stats.Hits,
		"misses":        stats.Misses,
		"hit_rate":      stats.HitRate,
	})
}

func handleClearCache(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	s.client.ClearCache()
	return jsonResult(map[string]any{
		"success": true,
		"message": "Cache cleared successfully",
	})
}

func handleServerInfo(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	cfg := s.client.Config()
	return jsonResult(map[string]any{
		"server":  "data.gov.in MCP Server",
		"version": s.version,
		"configuration": map[string]any{
			"api_base_url":  cfg.BaseURL,
			"cache_enabled": cfg.Cache.Enabled,
			"cache_ttl":     cfg.Cache.TTL.String(),
			"rate_limit":    fmt.Sprintf("%d calls per %s", cfg.RateLimit.Calls, cfg.RateLimit.Period),
			"timeout":       cfg.Timeout.String(),
			"default_limit": cfg.Page.DefaultLimit,
			"max_limit":     cfg.Page.MaxLimit,
		},
		"api_key_configured": cfg.APIKey != "",
	})
}
