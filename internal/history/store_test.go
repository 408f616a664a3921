package history

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"gopkg.in/yaml.v3"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Shutdown() })
	return store
}

func TestStorePutListClear(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		item := NewItem(base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("caption %d", i), "10 ms", "")
		if err := store.Put(ctx, item); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 8 {
		t.Errorf("Expected all 8 items kept in storage, got %d", len(items))
	}

	recent := Recent(items, DisplayLimit)
	if len(recent) != DisplayLimit {
		t.Fatalf("Expected %d items for display, got %d", DisplayLimit, len(recent))
	}
	if recent[0].Caption != "caption 7" || recent[5].Caption != "caption 2" {
		t.Errorf("Expected newest first, got %q .. %q", recent[0].Caption, recent[5].Caption)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	items, err = store.List(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected empty history after clear, got %d", len(items))
	}
}

func TestStorePutOverwritesById(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Put(ctx, NewItem(now, "first", "1 ms", "data:image/jpeg;base64,AAAA")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := store.Put(ctx, NewItem(now, "second", "2 ms", "")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected one item, got %d", len(items))
	}
	if items[0].Caption != "second" || items[0].Thumbnail != "" {
		t.Errorf("Expected overwritten item without thumbnail, got %+v", items[0])
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := store.Put(ctx, NewItem(time.Now(), "a dog", "120 ms", "")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	_ = store.Shutdown()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer store.Shutdown()
	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Caption != "a dog" {
		t.Errorf("Expected persisted item, got %+v", items)
	}
}

func TestRecent(t *testing.T) {
	items := []model.HistoryItem{
		{ID: "1", Timestamp: "2026-01-01T00:00:00.000Z"},
		{ID: "3", Timestamp: "2026-01-03T00:00:00.000Z"},
		{ID: "2", Timestamp: "2026-01-02T00:00:00.000Z"},
	}

	tests := []struct {
		name     string
		limit    int
		expected []string
	}{
		{"all", 6, []string{"3", "2", "1"}},
		{"truncated", 2, []string{"3", "2"}},
		{"zero", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recent := Recent(items, tt.limit)
			if len(recent) != len(tt.expected) {
				t.Fatalf("Expected %d items, got %d", len(tt.expected), len(recent))
			}
			for i, id := range tt.expected {
				if recent[i].ID != id {
					t.Errorf("Expected id %s at %d, got %s", id, i, recent[i].ID)
				}
			}
		})
	}
	if items[0].ID != "1" {
		t.Errorf("Expected input to be left unsorted, got %s first", items[0].ID)
	}
}

func TestNewItem(t *testing.T) {
	now := time.Date(2026, 3, 1, 13, 4, 5, 678000000, time.FixedZone("CET", 3600))
	item := NewItem(now, "a dog", "120 ms", "")
	if item.Timestamp != "2026-03-01T12:04:05.678Z" {
		t.Errorf("Expected UTC millisecond timestamp, got %s", item.Timestamp)
	}
	if item.ID != fmt.Sprint(now.UnixMilli()) {
		t.Errorf("Expected millisecond id, got %s", item.ID)
	}
}

func TestExport(t *testing.T) {
	items := []model.HistoryItem{
		NewItem(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), "a dog", "120 ms", ""),
		NewItem(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), "a cat & a mouse", "cold 500 ms / warm 50 ms", ""),
	}

	data, err := Export(items, FormatYAML)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var decoded struct {
		Items []model.HistoryItem `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Export is not valid yaml: %v", err)
	}
	if len(decoded.Items) != 2 || decoded.Items[1].TimeLabel != "cold 500 ms / warm 50 ms" {
		t.Errorf("Unexpected yaml export: %s", data)
	}

	rss, err := Export(items, FormatRSS)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(string(rss), "<rss") || !strings.Contains(string(rss), "a cat &amp; a mouse") {
		t.Errorf("Unexpected rss export: %s", rss)
	}

	if _, err := Export(items, "csv"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestStoreConcurrentPutAndClear(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs <- store.Put(ctx, NewItem(base.Add(time.Duration(i)*time.Millisecond), "a dog", "1 ms", ""))
		}(i)
		go func() {
			defer wg.Done()
			errs <- store.Clear(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}
}

func TestWithBusyTimeout(t *testing.T) {
	tests := []struct {
		dsn      string
		expected string
	}{
		{"history.db", "history.db?_pragma=busy_timeout(5000)"},
		{"file:history.db?mode=rwc", "file:history.db?mode=rwc&_pragma=busy_timeout(5000)"},
	}
	for _, tt := range tests {
		if got := withBusyTimeout(tt.dsn); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}
