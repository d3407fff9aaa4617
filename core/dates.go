package core

import (
	"fmt"
	"strconv"
	"time"
)

// WireDateFormat is the timestamp layout the bulk-import API accepts.
const WireDateFormat = "2006-01-02T15:04:05Z"

// acceptedDateLayouts are tried in order when normalizing string dates.
var acceptedDateLayouts = []string{
	time.RFC3339,
	WireDateFormat,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeDate converts any accepted date representation to the wire
// format in UTC. Accepted forms are time.Time, common timestamp string
// layouts, and unix seconds as int, int64, float64 or a digit string.
func NormalizeDate(value any) (string, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(WireDateFormat), nil
	case int:
		return time.Unix(int64(v), 0).UTC().Format(WireDateFormat), nil
	case int64:
		return time.Unix(v, 0).UTC().Format(WireDateFormat), nil
	case float64:
		return time.Unix(int64(v), 0).UTC().Format(WireDateFormat), nil
	case string:
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC().Format(WireDateFormat), nil
		}
		for _, layout := range acceptedDateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC().Format(WireDateFormat), nil
			}
		}
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, v)
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidDate, value)
	}
}
