// Package commands (de)serializes callback payloads exchanged with the
// messaging transport. Engines never see the raw strings, only the decoded
// commands.
package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate is the decoded form of a rating button press:
// "rate:<index>:<value>:<unix>".
type Rate struct {
	Index    int    // 1-based question slot
	Value    string // chosen rating, "1".."5"
	IssuedAt time.Time
}

func EncodeRate(index, value int, issuedAt time.Time) string {
	return fmt.Sprintf("rate:%d:%d:%d", index, value, issuedAt.Unix())
}

func ParseRate(data string) (Rate, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != "rate" {
		return Rate{}, fmt.Errorf("malformed rate payload %q", data)
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil {
		return Rate{}, fmt.Errorf("malformed rate index %q", parts[1])
	}
	ts, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Rate{}, fmt.Errorf("malformed rate timestamp %q", parts[3])
	}
	return Rate{Index: index, Value: parts[2], IssuedAt: time.Unix(ts, 0)}, nil
}

// EncodeRef builds an "<action>:<id>" payload for entity-targeted buttons
// (registration pick, slot claim, cabinet pick).
func EncodeRef(action string, id int64) string {
	return fmt.Sprintf("%s:%d", action, id)
}

// ParseRef decodes an "<action>:<id>" payload and returns the id.
func ParseRef(action, data string) (int64, bool) {
	rest, ok := strings.CutPrefix(data, action+":")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
