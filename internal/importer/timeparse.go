package importer

import (
	"fmt"
	"strings"
	"time"
)

// Accepted schedule time layouts, in precedence order. The date-only layouts
// are interpreted in the machine's local zone; RFC3339 carries its own offset.
var scheduleLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

// ParseScheduleTime parses a user-supplied schedule time into an absolute
// instant. Silent misparses here directly cause premature or missed sends,
// so the accepted formats are explicit and tried in a fixed order.
func ParseScheduleTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("scheduled time is empty")
	}

	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return t, nil
		}
	}

	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time format %q", trimmed)
}
