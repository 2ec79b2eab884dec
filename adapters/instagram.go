package adapters

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/parsers"
)

// instagramTasks searches top results and reels per keyword, and reads the
// feed of every configured channel URL
func (a *LiveAdapter) instagramTasks(cfg models.CollectionConfig) []searchTask {
	var tasks []searchTask
	for _, kw := range cfg.Keywords {
		tasks = append(tasks, a.instagramTopSerp(kw), a.instagramReels(kw))
	}
	for _, channelURL := range cfg.ChannelURLs {
		if username := instagramUsername(channelURL); username != "" {
			tasks = append(tasks, a.instagramFeed(username))
		} else {
			a.log.WithField("channel_url", channelURL).Warn("Not an instagram profile URL, skipping")
		}
	}
	return tasks
}

func instagramItem(item gjson.Result) (models.Post, *models.Channel) {
	post := parsers.InstagramPost(item)
	user := item.Get("user")
	if user.Get("username").String() == "" {
		return post, nil
	}
	channel := parsers.InstagramChannel(user)
	return post, &channel
}

// top results are a single page
func (a *LiveAdapter) instagramTopSerp(keyword string) searchTask {
	return searchTask{
		name: "top_serp:" + keyword,
		fetch: func(ctx context.Context, _ string) (searchPage, error) {
			resp, err := a.client.Get(ctx, models.PlatformInstagram, "fbsearch/top_serp/", url.Values{"query": {keyword}})
			if err != nil {
				return searchPage{}, err
			}
			return pageOf(parsers.FlattenInstagramTopSerp(resp), "", false), nil
		},
		parse: instagramItem,
	}
}

// reels search is a single page of items, each optionally wrapped in media
func (a *LiveAdapter) instagramReels(keyword string) searchTask {
	return searchTask{
		name: "reels:" + keyword,
		fetch: func(ctx context.Context, _ string) (searchPage, error) {
			resp, err := a.client.Get(ctx, models.PlatformInstagram, "search/reels", url.Values{"q": {keyword}})
			if err != nil {
				return searchPage{}, err
			}
			var items []gjson.Result
			for _, item := range firstArray(resp.Get("items"), resp.Get("medias")) {
				if media := item.Get("media"); media.IsObject() {
					item = media
				}
				if item.IsObject() {
					items = append(items, item)
				}
			}
			return pageOf(items, "", false), nil
		},
		parse: instagramItem,
	}
}

// instagramFeed resolves the username once, then pages the user feed by
// next_max_id
func (a *LiveAdapter) instagramFeed(username string) searchTask {
	var userID string
	var channel *models.Channel

	return searchTask{
		name: "feed:" + username,
		fetch: func(ctx context.Context, cursor string) (searchPage, error) {
			if userID == "" {
				info, err := a.client.Get(ctx, models.PlatformInstagram, "users/"+url.PathEscape(username)+"/usernameinfo", nil)
				if err != nil {
					return searchPage{}, err
				}
				user := info.Get("user")
				userID = user.Get("pk").String()
				if userID == "" {
					userID = user.Get("id").String()
				}
				if userID == "" {
					return searchPage{}, nil
				}
				ch := parsers.InstagramChannel(user)
				channel = &ch
			}

			params := url.Values{}
			if cursor != "" {
				params.Set("next_max_id", cursor)
			}
			resp, err := a.client.Get(ctx, models.PlatformInstagram, "feed/user/"+userID, params)
			if err != nil {
				return searchPage{}, err
			}
			return pageOf(resp.Get("items").Array(), resp.Get("next_max_id").String(), resp.Get("more_available").Bool()), nil
		},
		parse: func(item gjson.Result) (models.Post, *models.Channel) {
			return parsers.InstagramPost(item), channel
		},
	}
}
