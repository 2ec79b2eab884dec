package parsers

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
)

// RedditSubreddit returns the subreddit name of a discover item
func RedditSubreddit(item gjson.Result) string {
	return nameOf(item.Get("subreddit"))
}

// RedditPost parses an item from a discover search. The channel of a
// reddit post is its subreddit.
func RedditPost(item gjson.Result) models.Post {
	author := nameOf(item.Get("author"))
	subreddit := RedditSubreddit(item)

	postURL := item.Get("url").String()
	if permalink := item.Get("permalink").String(); permalink != "" {
		if strings.HasPrefix(permalink, "http") {
			postURL = permalink
		} else {
			postURL = "https://www.reddit.com" + permalink
		}
	}

	meta := map[string]any{
		"platform":     models.PlatformReddit,
		"subreddit":    subreddit,
		"author":       author,
		"upvote_ratio": item.Get("upvote_ratio").Value(),
		"flair":        item.Get("link_flair_text").Value(),
	}

	media := []string{}
	if thumb := item.Get("thumbnail").String(); strings.HasPrefix(thumb, "http") {
		media = append(media, thumb)
	}

	return models.Post{
		PostID:           item.Get("id").String(),
		Platform:         models.PlatformReddit,
		ChannelHandle:    author,
		ChannelID:        subreddit,
		Title:            item.Get("title").String(),
		Content:          firstOf(item.Get("selftext"), item.Get("body")).String(),
		PostURL:          postURL,
		PostedAt:         postedAt(firstOf(item.Get("created_utc"), item.Get("created")), meta),
		PostType:         redditPostType(item),
		MediaURLs:        media,
		Likes:            optInt(firstOf(item.Get("score"), item.Get("ups"))),
		CommentsCount:    optInt(item.Get("num_comments")),
		PlatformMetadata: meta,
	}
}

// RedditChannel builds the subreddit channel of a discover item
func RedditChannel(item gjson.Result) models.Channel {
	subreddit := RedditSubreddit(item)
	channelURL := ""
	if subreddit != "" {
		channelURL = "https://www.reddit.com/r/" + subreddit
	}

	return models.Channel{
		ChannelID:       subreddit,
		Platform:        models.PlatformReddit,
		ChannelHandle:   subreddit,
		ChannelURL:      channelURL,
		ChannelMetadata: map[string]any{},
	}
}

func redditPostType(item gjson.Result) string {
	if item.Get("is_video").Bool() {
		return "video"
	}
	if item.Get("post_hint").String() == "image" {
		return "image"
	}
	if strings.HasPrefix(item.Get("thumbnail").String(), "http") {
		return "image"
	}
	// missing is_self counts as a self post
	if isSelf := item.Get("is_self"); !isSelf.Exists() || isSelf.Bool() {
		return "text"
	}
	return "link"
}
