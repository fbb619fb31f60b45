package logs

import (
	"strconv"
	"strings"

	"jobsieve/internal/logging"
)

// Filter selects log lines by structured field. Empty fields match anything.
type Filter struct {
	RunID     string
	Source    string
	EventType string
}

// Empty reports whether the filter matches every line.
func (f Filter) Empty() bool {
	return f.RunID == "" && f.Source == "" && f.EventType == ""
}

// Match reports whether line carries every requested field value.
func (f Filter) Match(line string) bool {
	return hasField(line, logging.FieldRunID, f.RunID) &&
		hasField(line, logging.FieldSource, f.Source) &&
		hasField(line, logging.FieldEventType, f.EventType)
}

func hasField(line, key, value string) bool {
	if value == "" {
		return true
	}
	if strings.HasPrefix(strings.TrimSpace(line), "{") {
		return strings.Contains(line, strconv.Quote(key)+":"+strconv.Quote(value))
	}
	for _, token := range []string{key + "=" + value, key + "=" + strconv.Quote(value)} {
		idx := strings.Index(line, " "+token)
		for idx >= 0 {
			end := idx + 1 + len(token)
			if end == len(line) || line[end] == ' ' {
				return true
			}
			next := strings.Index(line[end:], " "+token)
			if next < 0 {
				break
			}
			idx = end + next
		}
	}
	return false
}
