package adapters

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/parsers"
)

var twitterSearchTypes = []string{"popular", "recent"}

// twitterTasks runs a popular and a recent search per keyword
func (a *LiveAdapter) twitterTasks(cfg models.CollectionConfig) []searchTask {
	tasks := make([]searchTask, 0, len(cfg.Keywords)*len(twitterSearchTypes))
	for _, kw := range cfg.Keywords {
		for _, searchType := range twitterSearchTypes {
			tasks = append(tasks, a.twitterSearch(searchType, kw))
		}
	}
	return tasks
}

func (a *LiveAdapter) twitterSearch(searchType, keyword string) searchTask {
	return searchTask{
		name: searchType + ":" + keyword,
		fetch: func(ctx context.Context, cursor string) (searchPage, error) {
			params := url.Values{"query": {keyword}}
			if cursor != "" {
				params.Set("cursor", cursor)
			}
			resp, err := a.client.Get(ctx, models.PlatformTwitter, "search/"+searchType, params)
			if err != nil {
				return searchPage{}, err
			}
			// twitter only signals more results through the bottom cursor
			next := resp.Get("cursor_bottom").String()
			return pageOf(resp.Get("tweets").Array(), next, next != ""), nil
		},
		parse: func(item gjson.Result) (models.Post, *models.Channel) {
			post := parsers.TwitterPost(item)
			user := parsers.TwitterUser(item)
			if user.Get("screen_name").String() == "" {
				return post, nil
			}
			channel := parsers.TwitterChannel(user)
			return post, &channel
		},
	}
}
