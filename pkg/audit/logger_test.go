package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/models"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := New(models.AuditConfig{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "audit_test.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleEntry(id, resource string, created time.Time) models.RequestEntry {
	hash, prefix := HashAPIKey("579b464db66ec23bdd000001")
	return models.RequestEntry{
		RequestID:    id,
		ResourceID:   resource,
		APIKeyHash:   hash,
		APIKeyPrefix: prefix,
		Params:       "format=json&limit=10&offset=0",
		StatusCode:   200,
		Attempts:     1,
		RecordCount:  10,
		LatencyMs:    42,
		CreatedAt:    created,
	}
}

func TestLogAndQuery(t *testing.T) {
	l := newTestLogger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := l.Log(ctx, sampleEntry("r1", "crop-prices", now)); err != nil {
		t.Fatal(err)
	}
	if err := l.Log(ctx, sampleEntry("r2", "rainfall", now.Add(time.Second))); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Query(ctx, models.RequestQueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].RequestID != "r2" {
		t.Errorf("newest first: got %s", entries[0].RequestID)
	}
	if entries[1].Params != "format=json&limit=10&offset=0" {
		t.Errorf("params = %s", entries[1].Params)
	}
}

func TestQueryFilters(t *testing.T) {
	l := newTestLogger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = l.Log(ctx, sampleEntry("ok", "crop-prices", now))
	failed := sampleEntry("bad", "rainfall", now)
	failed.StatusCode = 404
	failed.Error = `resource "rainfall" not found`
	_ = l.Log(ctx, failed)

	byResource, err := l.Query(ctx, models.RequestQueryOpts{ResourceID: "crop-prices"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byResource) != 1 || byResource[0].RequestID != "ok" {
		t.Errorf("resource filter returned %+v", byResource)
	}

	errorsOnly, err := l.Query(ctx, models.RequestQueryOpts{ErrorsOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(errorsOnly) != 1 || errorsOnly[0].RequestID != "bad" {
		t.Errorf("errors filter returned %+v", errorsOnly)
	}

	byID, err := l.Query(ctx, models.RequestQueryOpts{RequestID: "bad"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byID) != 1 || byID[0].StatusCode != 404 {
		t.Errorf("request id filter returned %+v", byID)
	}
}

func TestStats(t *testing.T) {
	l := newTestLogger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = l.Log(ctx, sampleEntry("a", "crop-prices", now))
	hit := sampleEntry("b", "crop-prices", now)
	hit.CacheHit = true
	hit.Attempts = 0
	_ = l.Log(ctx, hit)

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d stat rows, want 1", len(stats))
	}
	if stats[0].Count != 2 || stats[0].CacheHits != 1 {
		t.Errorf("stats = %+v, want count 2 with 1 cache hit", stats[0])
	}
}

func TestCleanup(t *testing.T) {
	l, err := New(models.AuditConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "audit_test.db"),
		RetentionDays: 7,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	ctx := context.Background()

	_ = l.Log(ctx, sampleEntry("old", "crop-prices", time.Now().UTC().AddDate(0, 0, -30)))
	_ = l.Log(ctx, sampleEntry("new", "crop-prices", time.Now().UTC()))

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, _ := l.Query(ctx, models.RequestQueryOpts{})
	if len(entries) != 1 || entries[0].RequestID != "new" {
		t.Errorf("remaining entries = %+v", entries)
	}
}

func TestHashAPIKey(t *testing.T) {
	hash, prefix := HashAPIKey("579b464db66ec23bdd000001")
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
	if prefix != "579b464d" {
		t.Errorf("prefix = %s, want 579b464d", prefix)
	}

	_, short := HashAPIKey("abc")
	if short != "abc" {
		t.Errorf("short key prefix = %s, want abc", short)
	}
}
