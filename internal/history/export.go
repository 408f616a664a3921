package history

import (
	"fmt"
	"time"

	"github.com/gorilla/feeds"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatRSS  = "rss"
)

var ErrUnknownFormat = fmt.Errorf("unknown export format")

// Export renders items in the given format.
func Export(items []model.HistoryItem, format string) ([]byte, error) {
	switch format {
	case FormatYAML, "":
		data, err := yaml.Marshal(map[string]interface{}{"items": items})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal yaml: %w", err)
		}
		return data, nil
	case FormatRSS:
		rss, err := Feed(items, "")
		return []byte(rss), err
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// Feed builds an RSS document with one entry per caption. Thumbnails are dropped.
func Feed(items []model.HistoryItem, link string) (string, error) {
	if link == "" {
		link = "http://localhost"
	}
	feed := feeds.Feed{
		Title:       "Caption history",
		Description: "Captions generated by the local vision model",
		Link:        &feeds.Link{Href: link},
		Updated:     time.Now(),
	}

	feed.Items = lo.Map(items, func(item model.HistoryItem, _ int) *feeds.Item {
		// zero time for unparsable timestamps
		created, _ := time.Parse(TimestampLayout, item.Timestamp)
		return &feeds.Item{
			Id:          item.ID,
			Title:       item.Caption,
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/history#%s", link, item.ID)},
			Description: item.TimeLabel,
			Created:     created,
		}
	})

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Created.After(b.Created)
	})
	return feed.ToRss()
}
