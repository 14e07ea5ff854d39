package stores

import (
	"strings"
	"time"

	"github.com/oarkflow/date"
)

// rowScanner is the slice of the rows API the scan helpers need.
type rowScanner interface {
	Scan(dest ...any) error
}

func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqlNullTimeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// scanTime converts the driver's raw representation of a timestamp column.
// sqlite hands back strings, other drivers time.Time.
func scanTime(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Tenant paths are stored as a single '/'-joined column so descendant queries
// become a LIKE prefix match.
func joinPath(path []string) string {
	return strings.Join(path, "/")
}

func splitPath(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}
