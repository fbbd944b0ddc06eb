package models

import "time"

// AuditConfig controls the request audit log.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	DBPath        string `yaml:"db_path" json:"db_path"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
}

// RequestEntry records the outcome of one fetch against the upstream API.
// The API key is never stored in clear text, only its hash and a short
// prefix for correlation.
type RequestEntry struct {
	RequestID    string    `json:"request_id"`
	ResourceID   string    `json:"resource_id"`
	APIKeyHash   string    `json:"api_key_hash"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	Params       string    `json:"params"`
	StatusCode   int       `json:"status_code"`
	CacheHit     bool      `json:"cache_hit"`
	Attempts     int       `json:"attempts"`
	RecordCount  int       `json:"record_count"`
	LatencyMs    int64     `json:"latency_ms"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RequestQueryOpts filters audit log queries. Zero values mean "no filter".
type RequestQueryOpts struct {
	RequestID  string
	ResourceID string
	Since      time.Time
	ErrorsOnly bool
	Limit      int
}

// RequestStat aggregates request counts by resource and day.
type RequestStat struct {
	ResourceID string `json:"resource_id"`
	Day        string `json:"day"`
	Count      int64  `json:"count"`
	CacheHits  int64  `json:"cache_hits"`
	Errors     int64  `json:"errors"`
}
