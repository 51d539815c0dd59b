package storage

import (
	"fmt"
	"time"
)

//nolint:gochecknoglobals // layouts tried in order
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// flexTime scans timestamps from both drivers: lib/pq returns time.Time while
// SQLite may hand back the stored text.
type flexTime struct {
	Time time.Time
}

func (f *flexTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		f.Time = time.Time{}
		return nil
	case time.Time:
		f.Time = v
		return nil
	case string:
		return f.parse(v)
	case []byte:
		return f.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (f *flexTime) parse(s string) error {
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			f.Time = t
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}
