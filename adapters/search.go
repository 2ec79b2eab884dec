package adapters

import (
	"context"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
)

// budget is the post cap shared by one platform's search tasks. It also
// counts granted posts. A zero limit means no cap.
type budget struct {
	limit int64
	used  atomic.Int64
}

func newBudget(limit int) *budget {
	return &budget{limit: int64(limit)}
}

// take reserves up to n posts and returns how many were granted
func (b *budget) take(n int) int {
	if b.limit <= 0 {
		b.used.Add(int64(n))
		return n
	}
	for {
		used := b.used.Load()
		remaining := b.limit - used
		if remaining <= 0 {
			return 0
		}
		grant := int64(n)
		if grant > remaining {
			grant = remaining
		}
		if b.used.CompareAndSwap(used, used+grant) {
			return int(grant)
		}
	}
}

func (b *budget) exhausted() bool {
	return b.limit > 0 && b.used.Load() >= b.limit
}

// searchPage is one upstream page of raw items
type searchPage struct {
	items []gjson.Result
	// next is the cursor for the following page, empty when none was returned
	next string
	// more reports whether upstream claims another page exists
	more bool
}

// searchTask pages through one upstream search for one keyword or channel
type searchTask struct {
	name  string
	fetch func(ctx context.Context, cursor string) (searchPage, error)
	// parse maps a raw item to its post and, when known, its channel
	parse func(item gjson.Result) (models.Post, *models.Channel)
}

// taskLimits are the stop conditions shared by a platform's tasks
type taskLimits struct {
	pages  int
	window models.Window
	budget *budget
}

// run pages forward until upstream is exhausted, the page limit is hit, or
// the platform budget runs out. Out-of-window items are dropped before they
// count against the budget.
func (t searchTask) run(ctx context.Context, limits taskLimits, emit emitFunc) error {
	seenChannels := make(map[string]bool)
	cursor := ""

	for page := 0; page < limits.pages; page++ {
		if limits.budget.exhausted() || ctx.Err() != nil {
			return nil
		}

		resp, err := t.fetch(ctx, cursor)
		if err != nil {
			return err
		}
		if len(resp.items) == 0 {
			return nil
		}

		posts := make([]models.Post, 0, len(resp.items))
		channels := make([]*models.Channel, 0, len(resp.items))
		for _, item := range resp.items {
			post, channel := t.parse(item)
			if !limits.window.Contains(post.PostedAt) {
				continue
			}
			posts = append(posts, post)
			channels = append(channels, channel)
		}

		granted := limits.budget.take(len(posts))
		posts = posts[:granted]
		channels = channels[:granted]

		if len(posts) > 0 {
			batch := models.Batch{Posts: posts}
			for _, ch := range channels {
				if ch == nil {
					continue
				}
				key := ch.Key()
				if (ch.ChannelHandle == "" && ch.ChannelID == "") || seenChannels[key] {
					continue
				}
				seenChannels[key] = true
				batch.Channels = append(batch.Channels, *ch)
			}
			if !emit(batch) {
				return nil
			}
		}

		// upstream claiming more pages without a cursor counts as exhausted
		if !resp.more || resp.next == "" {
			return nil
		}
		cursor = resp.next
	}

	return nil
}
