package parsers

import (
	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
)

// TikTokPost parses an item from a keyword search
func TikTokPost(item gjson.Result) models.Post {
	author := item.Get("author")
	stats := item.Get("statistics")
	username := author.Get("username").String()
	postID := item.Get("post_id").String()

	media := []string{}
	media = appendNonEmpty(media, item.Get("video.cover.url_list.0").String())
	media = appendNonEmpty(media, item.Get("video.play_addr.url_list.0").String())

	postURL := item.Get("post_url").String()
	if postURL == "" && postID != "" {
		postURL = "https://www.tiktok.com/@" + username + "/video/" + postID
	}

	meta := map[string]any{
		"platform":       models.PlatformTikTok,
		"author":         username,
		"follower_count": author.Get("follower_count").Value(),
		"hashtags":       stringList(item.Get("mentions.hashtags")),
		"music":          item.Get("music").Value(),
		"region":         item.Get("region").Value(),
		"desc_language":  item.Get("desc_language").Value(),
	}

	return models.Post{
		PostID:           postID,
		Platform:         models.PlatformTikTok,
		ChannelHandle:    username,
		ChannelID:        author.Get("sec_uid").String(),
		Content:          item.Get("desc").String(),
		PostURL:          postURL,
		PostedAt:         postedAt(item.Get("create_time"), meta),
		PostType:         "video",
		MediaURLs:        media,
		Likes:            optInt(stats.Get("likes_count")),
		Shares:           optInt(stats.Get("share_count")),
		CommentsCount:    optInt(stats.Get("comment_count")),
		Views:            optInt(stats.Get("play_count")),
		Saves:            optInt(stats.Get("collect_count")),
		PlatformMetadata: meta,
	}
}

// TikTokChannel parses the author object attached to a search result
func TikTokChannel(author gjson.Result) models.Channel {
	username := author.Get("username").String()
	channelURL := ""
	if username != "" {
		channelURL = "https://www.tiktok.com/@" + username
	}

	return models.Channel{
		ChannelID:     author.Get("sec_uid").String(),
		Platform:      models.PlatformTikTok,
		ChannelHandle: username,
		Subscribers:   optInt(author.Get("follower_count")),
		TotalPosts:    optInt(author.Get("video_count")),
		ChannelURL:    channelURL,
		ChannelMetadata: map[string]any{
			"verification_type": author.Get("verification_type").Value(),
			"nickname":          author.Get("nickname").Value(),
			"custom_verify":     author.Get("custom_verify").Value(),
		},
	}
}
