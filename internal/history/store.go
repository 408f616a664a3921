package history

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	_ "modernc.org/sqlite"
)

const (
	DisplayLimit = 6

	busyTimeoutMs = 5000
)

type Config struct {
	Path  string `mapstructure:"path"`
	Limit int    `mapstructure:"limit"`
}

func DefaultConfig() Config {
	return Config{
		Path:  "caption-history.db",
		Limit: DisplayLimit,
	}
}

// Store keeps history items in a SQLite file. Items are never trimmed, only the display list is.
type Store struct {
	db *sql.DB
}

// withBusyTimeout makes a locked database wait instead of failing with SQLITE_BUSY.
func withBusyTimeout(dataSourceName string) string {
	separator := "?"
	if strings.Contains(dataSourceName, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dataSourceName, separator, busyTimeoutMs)
}

func Open(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", withBusyTimeout(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection serializes writers from the session, the HTTP API and the CLI
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	logger.Debugf("history store opened at %s", dataSourceName)

	return store, nil
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		caption TEXT NOT NULL,
		time_label TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		thumbnail TEXT
	);`)
	return err
}

// Put inserts item, replacing any item with the same id.
func (s *Store) Put(ctx context.Context, item model.HistoryItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT OR REPLACE INTO items (id, caption, time_label, timestamp, thumbnail)
	VALUES (?, ?, ?, ?, ?)
	`
	var thumbnail sql.NullString
	if item.Thumbnail != "" {
		thumbnail = sql.NullString{String: item.Thumbnail, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, query, item.ID, item.Caption, item.TimeLabel, item.Timestamp, thumbnail); err != nil {
		return fmt.Errorf("failed to put item %s: %w", item.ID, err)
	}
	return tx.Commit()
}

// List returns every stored item in no particular order.
func (s *Store) List(ctx context.Context) ([]model.HistoryItem, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT id, caption, time_label, timestamp, thumbnail FROM items`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []model.HistoryItem{}
	for rows.Next() {
		var item model.HistoryItem
		var thumbnail sql.NullString
		if err := rows.Scan(&item.ID, &item.Caption, &item.TimeLabel, &item.Timestamp, &thumbnail); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Thumbnail = thumbnail.String
		items = append(items, item)
	}

	return items, rows.Err()
}

func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	return tx.Commit()
}

// Shutdown closes the database.
func (s *Store) Shutdown() error {
	return s.db.Close()
}

// Recent sorts items by timestamp, newest first, and keeps at most limit of them.
func Recent(items []model.HistoryItem, limit int) []model.HistoryItem {
	sorted := make([]model.HistoryItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
