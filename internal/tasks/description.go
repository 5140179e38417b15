package tasks

import (
	"strings"
	"time"
)

const (
	// DescriptionMarker separates the human written description from the sync timestamp.
	DescriptionMarker = "Last updated: "
	// TimestampLayout renders as e.g. "05-03-2025 14:07:09 (GMT)".
	TimestampLayout = "02-01-2006 15:04:05 (MST)"
)

// UpdatedDescription replaces the timestamp after the last marker with now, formatted in now's location.
// A description without a marker keeps all of its text and gains one.
func UpdatedDescription(description string, now time.Time) string {
	prefix := description
	if i := strings.LastIndex(description, DescriptionMarker); i >= 0 {
		prefix = description[:i]
	}
	prefix = strings.TrimSpace(prefix)

	stamp := DescriptionMarker + now.Format(TimestampLayout)
	if prefix == "" {
		return stamp
	}
	return prefix + " " + stamp
}
