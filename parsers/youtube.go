package parsers

import (
	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
)

// YouTubePost parses a video from a discover search
func YouTubePost(item gjson.Result) models.Post {
	channel := item.Get("channel")
	videoID := item.Get("id").String()

	media := []string{}
	if thumb := item.Get("thumbnailUrl").String(); thumb != "" {
		media = append(media, thumb)
	} else if videoID != "" {
		media = append(media, "https://i.ytimg.com/vi/"+videoID+"/maxresdefault.jpg")
	}

	postURL := item.Get("url").String()
	if postURL == "" && videoID != "" {
		postURL = "https://www.youtube.com/watch?v=" + videoID
	}

	meta := map[string]any{
		"platform":     models.PlatformYouTube,
		"channel_name": channel.Get("name").Value(),
		"channel_id":   channel.Get("id").Value(),
		"duration":     item.Get("duration").Value(),
		"channel_url":  channel.Get("url").Value(),
	}

	return models.Post{
		PostID:           videoID,
		Platform:         models.PlatformYouTube,
		ChannelHandle:    channel.Get("name").String(),
		ChannelID:        channel.Get("id").String(),
		Title:            item.Get("title").String(),
		Content:          item.Get("description").String(),
		PostURL:          postURL,
		PostedAt:         postedAt(item.Get("publishedAt"), meta),
		PostType:         "video",
		MediaURLs:        media,
		Likes:            optInt(item.Get("likeCount")),
		CommentsCount:    optInt(item.Get("commentCount")),
		Views:            optInt(item.Get("viewCount")),
		PlatformMetadata: meta,
	}
}

// YouTubeChannel parses the channel object of a search result
func YouTubeChannel(channel gjson.Result) models.Channel {
	id := channel.Get("id").String()
	channelURL := channel.Get("url").String()
	if channelURL == "" && id != "" {
		channelURL = "https://www.youtube.com/channel/" + id
	}

	return models.Channel{
		ChannelID:       id,
		Platform:        models.PlatformYouTube,
		ChannelHandle:   channel.Get("name").String(),
		Subscribers:     optInt(channel.Get("subscriberCount")),
		ChannelURL:      channelURL,
		ChannelMetadata: map[string]any{},
	}
}

// YouTubeEngagement parses a video about response
func YouTubeEngagement(resp gjson.Result, postURL string) models.EngagementSnapshot {
	return models.EngagementSnapshot{
		PostURL:       postURL,
		Likes:         optInt(resp.Get("likeCount")),
		CommentsCount: optInt(resp.Get("commentCount")),
		Views:         optInt(resp.Get("viewCount")),
		Comments:      []models.Comment{},
	}
}
