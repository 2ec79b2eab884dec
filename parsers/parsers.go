// Package parsers maps raw provider responses into models.Post and
// models.Channel. Every accessor tolerates missing or mistyped fields.
package parsers

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// FallbackKey is set in a post's metadata when its timestamp was missing or
// unparseable and PostedAt was substituted with the collection time
const FallbackKey = "posted_at_fallback"

var now = func() time.Time {
	return time.Now().UTC()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RubyDate, // twitter: "Wed May 21 10:11:40 +0000 2025"
	"2006-01-02",
}

// optInt returns nil when the field is absent or not a number. Numeric
// strings are accepted.
func optInt(r gjson.Result) *int64 {
	switch r.Type {
	case gjson.Number:
		v := r.Int()
		return &v
	case gjson.String:
		v, err := strconv.ParseInt(strings.TrimSpace(r.Str), 10, 64)
		if err != nil {
			return nil
		}
		return &v
	}
	return nil
}

// firstOf returns the first result that exists and is not null
func firstOf(results ...gjson.Result) gjson.Result {
	for _, r := range results {
		if r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

// parseTime accepts unix epoch seconds (number or numeric string) and the
// string layouts in timeLayouts
func parseTime(r gjson.Result) (time.Time, bool) {
	switch r.Type {
	case gjson.Number:
		if r.Float() <= 0 {
			return time.Time{}, false
		}
		return time.Unix(r.Int(), 0).UTC(), true
	case gjson.String:
		value := strings.TrimSpace(r.Str)
		if value == "" {
			return time.Time{}, false
		}
		if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
			if secs <= 0 {
				return time.Time{}, false
			}
			return time.Unix(secs, 0).UTC(), true
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// postedAt parses r, falling back to now and flagging the fallback in meta
func postedAt(r gjson.Result, meta map[string]any) time.Time {
	if t, ok := parseTime(r); ok {
		return t
	}
	meta[FallbackKey] = true
	return now()
}

// optTime is parseTime for optional dates
func optTime(r gjson.Result) *time.Time {
	if t, ok := parseTime(r); ok {
		return &t
	}
	return nil
}

// stringList returns the non-empty string elements of an array result
func stringList(r gjson.Result) []string {
	var out []string
	for _, v := range r.Array() {
		if s := v.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// nameOf handles fields that are either an object with a name or a bare string
func nameOf(r gjson.Result) string {
	if r.IsObject() {
		return r.Get("name").String()
	}
	if r.Type == gjson.String {
		return r.Str
	}
	return ""
}
