// Package normalizer converts domain records into row-store rows
package normalizer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/brettboylen/social-listener/models"
)

// Engagement row sources
const (
	SourceInitial = "initial"
	SourceRefresh = "refresh"
)

// Table names in the row store
const (
	TablePosts       = "posts"
	TableEngagements = "post_engagements"
	TableChannels    = "channels"
	TableCollections = "collections"
)

// Row is one row keyed by column name
type Row = map[string]any

var now = func() time.Time { return time.Now().UTC() }

// PostRow converts a post for the posts table
func PostRow(post models.Post, collectionID string) Row {
	refs := "[]"
	if len(post.MediaRefs) > 0 {
		refs = encode(post.MediaRefs)
	}
	mediaURLs := "[]"
	if len(post.MediaURLs) > 0 {
		mediaURLs = encode(post.MediaURLs)
	}

	return Row{
		"post_id":           post.PostID,
		"collection_id":     collectionID,
		"platform":          post.Platform,
		"channel_handle":    post.ChannelHandle,
		"channel_id":        nullable(post.ChannelID),
		"title":             nullable(post.Title),
		"content":           post.Content,
		"post_url":          post.PostURL,
		"posted_at":         timestamp(post.PostedAt),
		"post_type":         post.PostType,
		"parent_post_id":    nullable(post.ParentPostID),
		"media_urls":        mediaURLs,
		"media_refs":        refs,
		"platform_metadata": encodeMap(post.PlatformMetadata),
		"collected_at":      now().Format(time.RFC3339),
	}
}

// EngagementRow extracts the initial engagement snapshot carried by a post
func EngagementRow(post models.Post) Row {
	return engagementRow(post.PostID, SourceInitial, models.EngagementSnapshot{
		Likes:         post.Likes,
		Shares:        post.Shares,
		CommentsCount: post.CommentsCount,
		Views:         post.Views,
		Saves:         post.Saves,
		Comments:      post.Comments,
	})
}

// RefreshRow converts a re-fetched snapshot for postID
func RefreshRow(postID string, snapshot models.EngagementSnapshot) Row {
	return engagementRow(postID, SourceRefresh, snapshot)
}

func engagementRow(postID, source string, s models.EngagementSnapshot) Row {
	comments := "[]"
	if len(s.Comments) > 0 {
		comments = encode(s.Comments)
	}

	return Row{
		"engagement_id":        uuid.NewString(),
		"post_id":              postID,
		"likes":                counter(s.Likes),
		"shares":               counter(s.Shares),
		"comments_count":       counter(s.CommentsCount),
		"views":                counter(s.Views),
		"saves":                counter(s.Saves),
		"comments":             comments,
		"platform_engagements": nil,
		"source":               source,
		"fetched_at":           now().Format(time.RFC3339),
	}
}

// ChannelRow converts a channel for the channels table
func ChannelRow(channel models.Channel, collectionID string) Row {
	var created any
	if channel.CreatedDate != nil {
		created = timestamp(*channel.CreatedDate)
	}

	return Row{
		"channel_id":       channel.ChannelID,
		"collection_id":    collectionID,
		"platform":         channel.Platform,
		"channel_handle":   channel.ChannelHandle,
		"subscribers":      counter(channel.Subscribers),
		"total_posts":      counter(channel.TotalPosts),
		"channel_url":      nullable(channel.ChannelURL),
		"description":      nullable(channel.Description),
		"created_date":     created,
		"channel_metadata": encodeMap(channel.ChannelMetadata),
		"observed_at":      now().Format(time.RFC3339),
	}
}

// CollectionRow records a run's configuration and the question that started it
func CollectionRow(collectionID, userID, question string, cfg models.CollectionConfig) Row {
	return Row{
		"collection_id":     collectionID,
		"user_id":           userID,
		"original_question": question,
		"config":            encode(cfg),
		"created_at":        now().Format(time.RFC3339),
	}
}

func timestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func counter(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeMap(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	return encode(m)
}

// encode falls back to an empty JSON value for unencodable input such as
// NaN floats in upstream metadata
func encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		if _, isMap := v.(map[string]any); isMap {
			return "{}"
		}
		return "[]"
	}
	return string(data)
}
