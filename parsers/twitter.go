package parsers

import (
	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
)

// tweetOf unwraps the {"entryId": ..., "tweet": {...}} envelope
func tweetOf(item gjson.Result) gjson.Result {
	if tweet := item.Get("tweet"); tweet.IsObject() {
		return tweet
	}
	return item
}

// TwitterUser returns the user_details object of a search item
func TwitterUser(item gjson.Result) gjson.Result {
	return tweetOf(item).Get("user_details")
}

// TwitterPost parses a tweet from a popular or recent search
func TwitterPost(item gjson.Result) models.Post {
	tweet := tweetOf(item)
	user := tweet.Get("user_details")

	var parentID string
	var quoted map[string]any
	if tweet.Get("is_retweet").Bool() {
		parentID = tweet.Get("retweeted_status_result.result.rest_id").String()
	}
	if tweet.Get("is_quote_status").Bool() {
		qt := tweet.Get("quoted_status_result.result")
		if qtID := qt.Get("rest_id").String(); qtID != "" {
			if parentID == "" {
				parentID = qtID
			}
			quoted = map[string]any{
				"rest_id":     qtID,
				"full_text":   qt.Get("full_text").Value(),
				"screen_name": qt.Get("user_details.screen_name").Value(),
			}
		}
	}

	meta := map[string]any{
		"platform":         models.PlatformTwitter,
		"author":           user.Get("screen_name").Value(),
		"followers_count":  user.Get("followers_count").Value(),
		"verified_type":    user.Get("verified_type").Value(),
		"is_blue_verified": user.Get("is_blue_verified").Value(),
		"lang":             tweet.Get("lang").Value(),
		"conversation_id":  tweet.Get("conversation_id_str").Value(),
		"is_quote_status":  tweet.Get("is_quote_status").Value(),
		"is_retweet":       tweet.Get("is_retweet").Value(),
	}
	if quoted != nil {
		meta["quoted_tweet"] = quoted
	}

	return models.Post{
		PostID:           tweet.Get("rest_id").String(),
		Platform:         models.PlatformTwitter,
		ChannelHandle:    user.Get("screen_name").String(),
		ChannelID:        firstOf(user.Get("rest_id"), user.Get("id_str")).String(),
		Content:          tweet.Get("full_text").String(),
		PostURL:          tweetURL(tweet, user),
		PostedAt:         postedAt(tweet.Get("created_at"), meta),
		PostType:         tweetType(tweet),
		ParentPostID:     parentID,
		MediaURLs:        tweetMedia(tweet),
		Likes:            optInt(tweet.Get("favorite_count")),
		Shares:           optInt(tweet.Get("retweet_count")),
		CommentsCount:    optInt(tweet.Get("reply_count")),
		Views:            optInt(tweet.Get("view_count")),
		Saves:            optInt(tweet.Get("bookmark_count")),
		PlatformMetadata: meta,
	}
}

// TwitterChannel parses a user_details object
func TwitterChannel(user gjson.Result) models.Channel {
	screenName := user.Get("screen_name").String()
	channelURL := ""
	if screenName != "" {
		channelURL = "https://x.com/" + screenName
	}

	return models.Channel{
		ChannelID:     firstOf(user.Get("rest_id"), user.Get("id_str")).String(),
		Platform:      models.PlatformTwitter,
		ChannelHandle: screenName,
		Subscribers:   optInt(user.Get("followers_count")),
		TotalPosts:    optInt(user.Get("statuses_count")),
		ChannelURL:    channelURL,
		Description:   user.Get("description").String(),
		CreatedDate:   optTime(user.Get("created_at")),
		ChannelMetadata: map[string]any{
			"verified":         user.Get("verified").Value(),
			"verified_type":    user.Get("verified_type").Value(),
			"is_blue_verified": user.Get("is_blue_verified").Value(),
			"name":             user.Get("name").Value(),
			"media_count":      user.Get("media_count").Value(),
			"friends_count":    user.Get("friends_count").Value(),
		},
	}
}

// TwitterEngagement parses a tweet details response
func TwitterEngagement(resp gjson.Result, postURL string) models.EngagementSnapshot {
	tweet := resp.Get("tweet")
	return models.EngagementSnapshot{
		PostURL:       postURL,
		Likes:         optInt(tweet.Get("favorite_count")),
		Shares:        optInt(tweet.Get("retweet_count")),
		CommentsCount: optInt(tweet.Get("reply_count")),
		Views:         optInt(tweet.Get("view_count")),
		Saves:         optInt(tweet.Get("bookmark_count")),
		Comments:      []models.Comment{},
	}
}

func tweetType(tweet gjson.Result) string {
	for _, m := range tweet.Get("extended_entities.media").Array() {
		switch m.Get("type").String() {
		case "video", "animated_gif":
			return "video"
		case "photo":
			return "image"
		}
	}
	return "text"
}

// tweetMedia takes the last mp4 variant of videos, the https url otherwise
func tweetMedia(tweet gjson.Result) []string {
	urls := []string{}
	for _, m := range tweet.Get("extended_entities.media").Array() {
		kind := m.Get("type").String()
		if kind == "video" || kind == "animated_gif" {
			variants := m.Get("video_info.variants").Array()
			best := ""
			for _, v := range variants {
				if v.Get("content_type").String() == "video/mp4" {
					best = v.Get("url").String()
				}
			}
			if best == "" && len(variants) > 0 {
				best = variants[0].Get("url").String()
			}
			urls = appendNonEmpty(urls, best)
			continue
		}
		urls = appendNonEmpty(urls, m.Get("media_url_https").String())
	}
	return urls
}

// tweetURL prefers the url field and otherwise builds the canonical
// x.com/{screen_name}/status/{id} link
func tweetURL(tweet, user gjson.Result) string {
	if u := tweet.Get("url").String(); u != "" {
		return u
	}
	id := tweet.Get("rest_id").String()
	handle := user.Get("screen_name").String()
	if id == "" || handle == "" {
		return ""
	}
	return "https://x.com/" + handle + "/status/" + id
}
