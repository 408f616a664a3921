package history

import (
	"strconv"
	"time"

	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
)

// TimestampLayout sorts lexically in time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// NewItem stamps a result taken at now. The id is the Unix millisecond time.
func NewItem(now time.Time, caption, timeLabel, thumbnail string) model.HistoryItem {
	return model.HistoryItem{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Caption:   caption,
		TimeLabel: timeLabel,
		Timestamp: now.UTC().Format(TimestampLayout),
		Thumbnail: thumbnail,
	}
}
