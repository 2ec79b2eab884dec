package adapters

import (
	"context"
	"net/url"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/parsers"
)

// reddit rejects longer search queries
const redditMaxQuery = 256

func (a *LiveAdapter) redditTasks(cfg models.CollectionConfig) []searchTask {
	tasks := make([]searchTask, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		tasks = append(tasks, a.redditSearch(kw))
	}
	return tasks
}

func (a *LiveAdapter) redditSearch(keyword string) searchTask {
	query := truncateRunes(keyword, redditMaxQuery)

	return searchTask{
		name: "discover:" + keyword,
		fetch: func(ctx context.Context, cursor string) (searchPage, error) {
			params := url.Values{"query": {query}, "sort": {"RELEVANCE"}}
			if cursor != "" {
				params.Set("cursor", cursor)
			}
			resp, err := a.client.Get(ctx, models.PlatformReddit, "discover/posts", params)
			if err != nil {
				return searchPage{}, err
			}
			pageInfo := resp.Get("pageInfo")
			return pageOf(firstArray(resp.Get("posts"), resp.Get("data")), pageInfo.Get("cursor").String(), pageInfo.Get("hasNextPage").Bool()), nil
		},
		parse: func(item gjson.Result) (models.Post, *models.Channel) {
			post := parsers.RedditPost(item)
			if post.ChannelID == "" {
				return post, nil
			}
			channel := parsers.RedditChannel(item)
			return post, &channel
		},
	}
}

// truncateRunes cuts s to at most n characters without splitting a rune
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
