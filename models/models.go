package models

import (
	"time"
)

// Platform tags
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformTwitter   = "twitter"
	PlatformReddit    = "reddit"
	PlatformYouTube   = "youtube"
)

// Platforms lists every platform tag the collection engine knows about
var Platforms = []string{
	PlatformTwitter,
	PlatformInstagram,
	PlatformTikTok,
	PlatformReddit,
	PlatformYouTube,
}

// IsKnownPlatform reports whether p is one of Platforms
func IsKnownPlatform(p string) bool {
	for _, known := range Platforms {
		if known == p {
			return true
		}
	}
	return false
}

// Comment is one top comment embedded in a post or engagement snapshot
type Comment struct {
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"posted_at"`
	Likes    *int64    `json:"likes"`
}

// MediaRef points at a media item persisted to blob storage
type MediaRef struct {
	URI         string `json:"uri"`
	MediaType   string `json:"media_type"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	OriginalURL string `json:"original_url"`
}

// Post represents one piece of collected content.
// A nil counter means the platform did not report it, never zero.
type Post struct {
	PostID           string         `json:"post_id"`
	Platform         string         `json:"platform"`
	ChannelHandle    string         `json:"channel_handle"`
	ChannelID        string         `json:"channel_id,omitempty"`
	Title            string         `json:"title,omitempty"`
	Content          string         `json:"content"`
	PostURL          string         `json:"post_url"`
	PostedAt         time.Time      `json:"posted_at"`
	PostType         string         `json:"post_type"`
	ParentPostID     string         `json:"parent_post_id,omitempty"`
	MediaURLs        []string       `json:"media_urls"`
	MediaRefs        []MediaRef     `json:"media_refs"`
	Likes            *int64         `json:"likes"`
	Shares           *int64         `json:"shares"`
	CommentsCount    *int64         `json:"comments_count"`
	Views            *int64         `json:"views"`
	Saves            *int64         `json:"saves"`
	Comments         []Comment      `json:"comments"`
	PlatformMetadata map[string]any `json:"platform_metadata,omitempty"`
}

// Channel is the account or community that produced posts.
// Channels are identified by (Platform, ChannelID).
type Channel struct {
	ChannelID       string         `json:"channel_id"`
	Platform        string         `json:"platform"`
	ChannelHandle   string         `json:"channel_handle"`
	Subscribers     *int64         `json:"subscribers"`
	TotalPosts      *int64         `json:"total_posts"`
	ChannelURL      string         `json:"channel_url"`
	Description     string         `json:"description,omitempty"`
	CreatedDate     *time.Time     `json:"created_date,omitempty"`
	ChannelMetadata map[string]any `json:"channel_metadata,omitempty"`
}

// Key returns the platform-scoped identity used for deduplication. Channels
// without an id fall back to their handle.
func (c Channel) Key() string {
	if c.ChannelID == "" {
		return c.Platform + ":@" + c.ChannelHandle
	}
	return c.Platform + ":" + c.ChannelID
}

// Batch groups the posts from one page of one search task with the
// channels first observed in that page
type Batch struct {
	Posts    []Post    `json:"posts"`
	Channels []Channel `json:"channels"`
}

// EngagementSnapshot is one point-in-time observation of a post's counters
type EngagementSnapshot struct {
	PostURL       string    `json:"post_url"`
	Likes         *int64    `json:"likes"`
	Shares        *int64    `json:"shares"`
	CommentsCount *int64    `json:"comments_count"`
	Views         *int64    `json:"views"`
	Saves         *int64    `json:"saves"`
	Comments      []Comment `json:"comments"`
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 {
	return &v
}
