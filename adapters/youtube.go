package adapters

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/parsers"
)

func (a *LiveAdapter) youtubeTasks(cfg models.CollectionConfig) []searchTask {
	tasks := make([]searchTask, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		tasks = append(tasks, a.youtubeSearch(kw))
	}
	return tasks
}

func (a *LiveAdapter) youtubeSearch(keyword string) searchTask {
	return searchTask{
		name: "discover:" + keyword,
		fetch: func(ctx context.Context, cursor string) (searchPage, error) {
			params := url.Values{"keywords": {keyword}, "sortBy": {"UploadDate"}}
			if cursor != "" {
				params.Set("cursor", cursor)
			}
			resp, err := a.client.Get(ctx, models.PlatformYouTube, "discover/videos", params)
			if err != nil {
				return searchPage{}, err
			}
			next := resp.Get("cursor").String()
			return pageOf(resp.Get("data").Array(), next, next != ""), nil
		},
		parse: func(item gjson.Result) (models.Post, *models.Channel) {
			post := parsers.YouTubePost(item)
			ch := item.Get("channel")
			if ch.Get("name").String() == "" {
				return post, nil
			}
			channel := parsers.YouTubeChannel(ch)
			return post, &channel
		},
	}
}
