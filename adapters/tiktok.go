package adapters

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/parsers"
)

func (a *LiveAdapter) tiktokTasks(cfg models.CollectionConfig) []searchTask {
	tasks := make([]searchTask, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		tasks = append(tasks, a.tiktokSearch(kw))
	}
	return tasks
}

func (a *LiveAdapter) tiktokSearch(keyword string) searchTask {
	return searchTask{
		name: "posts-by-keyword:" + keyword,
		fetch: func(ctx context.Context, cursor string) (searchPage, error) {
			params := url.Values{"keyword": {keyword}}
			if cursor != "" {
				params.Set("cursor", cursor)
			}
			resp, err := a.client.Get(ctx, models.PlatformTikTok, "search/posts-by-keyword", params)
			if err != nil {
				return searchPage{}, err
			}
			pagination := resp.Get("pagination")
			more := pagination.Get("hasMore").Bool() || pagination.Get("has_more").Bool()
			return pageOf(firstArray(resp.Get("posts"), resp.Get("data")), pagination.Get("cursor").String(), more), nil
		},
		parse: func(item gjson.Result) (models.Post, *models.Channel) {
			post := parsers.TikTokPost(item)
			author := item.Get("author")
			if author.Get("username").String() == "" {
				return post, nil
			}
			channel := parsers.TikTokChannel(author)
			return post, &channel
		},
	}
}
