package models

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxCalls is the number of pages each search task fetches in call-count mode
	DefaultMaxCalls = 2
	// MaxPagesPerTask bounds a search task in post-count mode
	MaxPagesPerTask = 20

	dateLayout = "2006-01-02"
)

// ErrInvalidConfig is returned for a malformed run configuration
var ErrInvalidConfig = errors.New("invalid collection config")

// CapMode selects how a search task decides it has collected enough
type CapMode string

const (
	// CapByCalls pages a fixed number of times per search task regardless of volume
	CapByCalls CapMode = "calls"
	// CapByPosts pages until the per-platform post target is reached
	CapByPosts CapMode = "posts"
)

// TimeRange holds the configured window as stored, either "YYYY-MM-DD" or RFC3339
type TimeRange struct {
	Start string `json:"start,omitempty" yaml:"start" bson:"start,omitempty"`
	End   string `json:"end,omitempty" yaml:"end" bson:"end,omitempty"`
}

// Window is a parsed, inclusive time window. A zero bound is open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within [Start, End], inclusive of both bounds
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// Window parses the range. A date-only end covers that whole day.
func (tr TimeRange) Window() (Window, error) {
	var w Window
	if tr.Start != "" {
		start, _, err := parseBound(tr.Start)
		if err != nil {
			return Window{}, fmt.Errorf("%w: time_range.start: %v", ErrInvalidConfig, err)
		}
		w.Start = start
	}
	if tr.End != "" {
		end, dateOnly, err := parseBound(tr.End)
		if err != nil {
			return Window{}, fmt.Errorf("%w: time_range.end: %v", ErrInvalidConfig, err)
		}
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		w.End = end
	}
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		return Window{}, fmt.Errorf("%w: time_range end %s is before start %s", ErrInvalidConfig, tr.End, tr.Start)
	}
	return w, nil
}

func parseBound(value string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

// CollectionConfig is the stored configuration of one collection run
type CollectionConfig struct {
	Platforms           []string  `json:"platforms" yaml:"platforms" bson:"platforms"`
	Keywords            []string  `json:"keywords" yaml:"keywords" bson:"keywords"`
	ChannelURLs         []string  `json:"channel_urls" yaml:"channel_urls" bson:"channel_urls"`
	TimeRange           TimeRange `json:"time_range" yaml:"time_range" bson:"time_range"`
	MaxPostsPerPlatform int       `json:"max_posts_per_platform,omitempty" yaml:"max_posts_per_platform" bson:"max_posts_per_platform,omitempty"`
	MaxCalls            int       `json:"max_calls,omitempty" yaml:"max_calls" bson:"max_calls,omitempty"`
	IncludeComments     bool      `json:"include_comments" yaml:"include_comments" bson:"include_comments"`
	GeoScope            string    `json:"geo_scope,omitempty" yaml:"geo_scope" bson:"geo_scope,omitempty"`
}

// CapMode returns CapByPosts when a per-platform post cap is configured,
// CapByCalls otherwise
func (c CollectionConfig) CapMode() CapMode {
	if c.MaxPostsPerPlatform > 0 {
		return CapByPosts
	}
	return CapByCalls
}

// PageLimit is the maximum number of pages a single search task may fetch
func (c CollectionConfig) PageLimit() int {
	if c.CapMode() == CapByPosts {
		return MaxPagesPerTask
	}
	if c.MaxCalls > 0 {
		return c.MaxCalls
	}
	return DefaultMaxCalls
}

// Validate checks the configuration before any I/O is attempted
func (c CollectionConfig) Validate() error {
	if len(c.Platforms) == 0 {
		return fmt.Errorf("%w: at least one platform is required", ErrInvalidConfig)
	}
	for _, p := range c.Platforms {
		if !IsKnownPlatform(p) {
			return fmt.Errorf("%w: unknown platform %q", ErrInvalidConfig, p)
		}
	}
	if len(c.Keywords) == 0 && len(c.ChannelURLs) == 0 {
		return fmt.Errorf("%w: keywords or channel_urls are required", ErrInvalidConfig)
	}
	if c.MaxPostsPerPlatform < 0 {
		return fmt.Errorf("%w: max_posts_per_platform must not be negative", ErrInvalidConfig)
	}
	if c.MaxCalls < 0 {
		return fmt.Errorf("%w: max_calls must not be negative", ErrInvalidConfig)
	}
	if _, err := c.TimeRange.Window(); err != nil {
		return err
	}
	return nil
}
