package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/parsers"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeProvider struct {
	platforms []string
	get       func(platform, path string, params url.Values) (gjson.Result, error)
	calls     atomic.Int64

	mu    sync.Mutex
	paths []string
}

func (f *fakeProvider) Get(_ context.Context, platform, path string, params url.Values) (gjson.Result, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.paths = append(f.paths, platform+"/"+path)
	f.mu.Unlock()
	return f.get(platform, path, params)
}

func (f *fakeProvider) Platforms() []string {
	return f.platforms
}

// tiktokItem renders one keyword search result
func tiktokItem(id, author string, posted time.Time) string {
	return fmt.Sprintf(`{"post_id":%q,"desc":"post %s","create_time":%d,"author":{"username":%q,"sec_uid":"sec-%s"},"statistics":{"likes_count":3}}`,
		id, id, posted.Unix(), author, author)
}

func tiktokPage(items []string, more bool, cursor string) gjson.Result {
	return gjson.Parse(fmt.Sprintf(`{"posts":[%s],"pagination":{"hasMore":%t,"cursor":%q}}`,
		strings.Join(items, ","), more, cursor))
}

func drain(seq func(func(models.Batch) bool)) []models.Batch {
	var batches []models.Batch
	for b := range seq {
		batches = append(batches, b)
	}
	return batches
}

func allPosts(batches []models.Batch) []models.Post {
	var posts []models.Post
	for _, b := range batches {
		posts = append(posts, b.Posts...)
	}
	return posts
}

func TestBudgetTake(t *testing.T) {
	b := newBudget(25)
	assert.Equal(t, 10, b.take(10))
	assert.Equal(t, 10, b.take(10))
	assert.Equal(t, 5, b.take(10))
	assert.Equal(t, 0, b.take(10))
	assert.True(t, b.exhausted())

	unlimited := newBudget(0)
	assert.Equal(t, 100, unlimited.take(100))
	assert.False(t, unlimited.exhausted())
	assert.Equal(t, int64(100), unlimited.used.Load())
}

func TestBudgetConcurrentTake(t *testing.T) {
	b := newBudget(50)
	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted.Add(int64(b.take(7)))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), granted.Load())
}

func TestSearchTaskTermination(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name          string
		more          bool
		cursor        string
		pages         int
		expectedCalls int64
	}{
		{name: "Upstream reports no more pages", more: false, cursor: "next", pages: 20, expectedCalls: 1},
		{name: "More claimed without cursor", more: true, cursor: "", pages: 20, expectedCalls: 1},
		{name: "Page limit reached", more: true, cursor: "next", pages: 3, expectedCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			task := searchTask{
				name: "stub",
				fetch: func(_ context.Context, _ string) (searchPage, error) {
					n := calls.Add(1)
					item := gjson.Parse(tiktokItem(fmt.Sprintf("p%d", n), "author", now))
					return pageOf([]gjson.Result{item}, tt.cursor, tt.more), nil
				},
				parse: func(item gjson.Result) (models.Post, *models.Channel) {
					return parsers.TikTokPost(item), nil
				},
			}

			limits := taskLimits{pages: tt.pages, budget: newBudget(0)}
			err := task.run(context.Background(), limits, func(models.Batch) bool { return true })
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCalls, calls.Load())
		})
	}
}

func TestSearchTaskEmptyPageStops(t *testing.T) {
	var calls atomic.Int64
	task := searchTask{
		fetch: func(_ context.Context, _ string) (searchPage, error) {
			calls.Add(1)
			return pageOf(nil, "next", true), nil
		},
	}
	emitted := 0
	err := task.run(context.Background(), taskLimits{pages: 5, budget: newBudget(0)}, func(models.Batch) bool {
		emitted++
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
	assert.Zero(t, emitted)
}

func TestSearchTaskTimeWindow(t *testing.T) {
	window, err := models.TimeRange{Start: "2024-01-01", End: "2024-01-31"}.Window()
	require.NoError(t, err)

	items := []string{
		tiktokItem("before", "a", time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)),
		tiktokItem("first", "a", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		tiktokItem("last", "b", time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)),
		tiktokItem("after", "b", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	}
	task := searchTask{
		fetch: func(_ context.Context, _ string) (searchPage, error) {
			return pageOf(tiktokPage(items, false, "").Get("posts").Array(), "", false), nil
		},
		parse: func(item gjson.Result) (models.Post, *models.Channel) {
			ch := parsers.TikTokChannel(item.Get("author"))
			return parsers.TikTokPost(item), &ch
		},
	}

	// two slots only, so out-of-window items must not consume budget
	b := newBudget(2)
	var batches []models.Batch
	err = task.run(context.Background(), taskLimits{pages: 1, window: window, budget: b}, func(batch models.Batch) bool {
		batches = append(batches, batch)
		return true
	})
	require.NoError(t, err)
	require.Len(t, batches, 1)

	var ids []string
	for _, p := range batches[0].Posts {
		ids = append(ids, p.PostID)
	}
	assert.Equal(t, []string{"first", "last"}, ids)
	assert.Len(t, batches[0].Channels, 2)
}

func TestSearchTaskDedupsChannelsWithinTask(t *testing.T) {
	now := time.Now().UTC()
	page := 0
	task := searchTask{
		fetch: func(_ context.Context, _ string) (searchPage, error) {
			page++
			items := []string{
				tiktokItem(fmt.Sprintf("a%d", page), "same", now),
				tiktokItem(fmt.Sprintf("b%d", page), "same", now),
			}
			return pageOf(tiktokPage(items, true, "c").Get("posts").Array(), "c", true), nil
		},
		parse: func(item gjson.Result) (models.Post, *models.Channel) {
			ch := parsers.TikTokChannel(item.Get("author"))
			return parsers.TikTokPost(item), &ch
		},
	}

	var batches []models.Batch
	err := task.run(context.Background(), taskLimits{pages: 2, budget: newBudget(0)}, func(b models.Batch) bool {
		batches = append(batches, b)
		return true
	})
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Channels, 1)
	assert.Empty(t, batches[1].Channels)
}

func TestNewLiveAdapterRequiresCredentials(t *testing.T) {
	_, err := NewLiveAdapter(&fakeProvider{}, testLogger())
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestLiveCollectIsolatesFailingTask(t *testing.T) {
	now := time.Now().UTC()
	provider := &fakeProvider{
		platforms: []string{models.PlatformTikTok},
		get: func(_, _ string, params url.Values) (gjson.Result, error) {
			kw := params.Get("keyword")
			if kw == "k3" {
				return gjson.Result{}, errors.New("upstream exploded")
			}
			return tiktokPage([]string{
				tiktokItem(kw+"-0", kw, now),
				tiktokItem(kw+"-1", kw, now),
			}, false, ""), nil
		},
	}
	adapter, err := NewLiveAdapter(provider, testLogger())
	require.NoError(t, err)

	cfg := models.CollectionConfig{
		Platforms: []string{models.PlatformTikTok},
		Keywords:  []string{"k1", "k2", "k3", "k4", "k5"},
	}
	posts := allPosts(drain(adapter.Collect(context.Background(), cfg)))

	assert.Len(t, posts, 8)
	for _, p := range posts {
		assert.NotContains(t, p.PostID, "k3")
		assert.Equal(t, models.PlatformTikTok, p.Platform)
	}
	assert.Equal(t, int64(5), provider.calls.Load())
}

func TestLiveCollectCapModes(t *testing.T) {
	now := time.Now().UTC()
	endless := func(_, _ string, params url.Values) (gjson.Result, error) {
		kw, cursor := params.Get("keyword"), params.Get("cursor")
		items := make([]string, 0, 10)
		for i := 0; i < 10; i++ {
			items = append(items, tiktokItem(fmt.Sprintf("%s-%s-%d", kw, cursor, i), kw, now))
		}
		return tiktokPage(items, true, cursor+"x"), nil
	}

	t.Run("Post cap shared across tasks", func(t *testing.T) {
		provider := &fakeProvider{platforms: []string{models.PlatformTikTok}, get: endless}
		adapter, err := NewLiveAdapter(provider, testLogger())
		require.NoError(t, err)

		cfg := models.CollectionConfig{
			Platforms:           []string{models.PlatformTikTok},
			Keywords:            []string{"a", "b", "c"},
			MaxPostsPerPlatform: 15,
		}
		posts := allPosts(drain(adapter.Collect(context.Background(), cfg)))
		assert.Len(t, posts, 15)
	})

	t.Run("Fixed calls per keyword", func(t *testing.T) {
		provider := &fakeProvider{platforms: []string{models.PlatformTikTok}, get: endless}
		adapter, err := NewLiveAdapter(provider, testLogger())
		require.NoError(t, err)

		cfg := models.CollectionConfig{
			Platforms: []string{models.PlatformTikTok},
			Keywords:  []string{"a", "b"},
			MaxCalls:  3,
		}
		posts := allPosts(drain(adapter.Collect(context.Background(), cfg)))
		assert.Len(t, posts, 60)
		assert.Equal(t, int64(6), provider.calls.Load())
	})
}

func TestLiveCollectSkipsPlatformsWithoutKey(t *testing.T) {
	provider := &fakeProvider{
		platforms: []string{models.PlatformTikTok},
		get: func(_, _ string, _ url.Values) (gjson.Result, error) {
			return tiktokPage(nil, false, ""), nil
		},
	}
	adapter, err := NewLiveAdapter(provider, testLogger())
	require.NoError(t, err)

	cfg := models.CollectionConfig{
		Platforms: []string{models.PlatformTikTok, models.PlatformReddit},
		Keywords:  []string{"glossier"},
	}
	assert.Empty(t, drain(adapter.Collect(context.Background(), cfg)))
	for _, p := range provider.paths {
		assert.True(t, strings.HasPrefix(p, models.PlatformTikTok+"/"), p)
	}
}

func TestLiveCollectEarlyBreakStopsProducers(t *testing.T) {
	now := time.Now().UTC()
	var n atomic.Int64
	provider := &fakeProvider{
		platforms: []string{models.PlatformTikTok},
		get: func(_, _ string, _ url.Values) (gjson.Result, error) {
			id := n.Add(1)
			return tiktokPage([]string{tiktokItem(fmt.Sprintf("p%d", id), "a", now)}, true, "more"), nil
		},
	}
	adapter, err := NewLiveAdapter(provider, testLogger())
	require.NoError(t, err)

	cfg := models.CollectionConfig{
		Platforms: []string{models.PlatformTikTok},
		Keywords:  []string{"a", "b"},
		MaxCalls:  1000,
	}
	for range adapter.Collect(context.Background(), cfg) {
		break
	}

	// producers have exited once the loop returns
	calls := provider.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, provider.calls.Load())
	assert.Less(t, calls, int64(2000))
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.instagram.com/p/abc/", models.PlatformInstagram},
		{"https://www.tiktok.com/@user/video/1", models.PlatformTikTok},
		{"https://twitter.com/user/status/1", models.PlatformTwitter},
		{"https://x.com/user/status/1", models.PlatformTwitter},
		{"https://old.reddit.com/r/x/comments/1", models.PlatformReddit},
		{"https://youtu.be/abc", models.PlatformYouTube},
		{"https://m.youtube.com/watch?v=abc", models.PlatformYouTube},
		{"https://notyoutube.com/watch?v=abc", ""},
		{"https://example.com/p/1", ""},
		{"::not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectPlatform(tt.url))
		})
	}
}

func TestLiveFetchEngagements(t *testing.T) {
	provider := &fakeProvider{
		platforms: []string{models.PlatformTwitter, models.PlatformYouTube},
		get: func(platform, path string, _ url.Values) (gjson.Result, error) {
			if platform == models.PlatformTwitter && path == "tweet/123/details" {
				return gjson.Parse(`{"tweet":{"favorite_count":5,"retweet_count":2,"reply_count":1}}`), nil
			}
			return gjson.Result{}, errors.New("not found")
		},
	}
	adapter, err := NewLiveAdapter(provider, testLogger())
	require.NoError(t, err)

	snapshots := adapter.FetchEngagements(context.Background(), []string{
		"https://twitter.com/user/status/123",
		"https://www.youtube.com/watch?v=missing",
		"https://www.instagram.com/p/abc/",
		"https://example.com/unknown",
	})

	require.Len(t, snapshots, 1)
	assert.Equal(t, "https://twitter.com/user/status/123", snapshots[0].PostURL)
	require.NotNil(t, snapshots[0].Likes)
	assert.Equal(t, int64(5), *snapshots[0].Likes)
	assert.Equal(t, int64(2), *snapshots[0].Shares)
	assert.Nil(t, snapshots[0].Views)
	// instagram and unknown hosts never reach the provider
	assert.Equal(t, int64(2), provider.calls.Load())
}

func TestMockRedditCapScenario(t *testing.T) {
	adapter := NewMockAdapter(42, testLogger())
	cfg := models.CollectionConfig{
		Platforms:           []string{models.PlatformReddit},
		Keywords:            []string{"glossier"},
		MaxPostsPerPlatform: 25,
	}

	batches := drain(adapter.Collect(context.Background(), cfg))
	require.Len(t, batches, 3)
	assert.Len(t, batches[2].Posts, 5)

	posts := allPosts(batches)
	assert.Len(t, posts, 25)
	ids := make(map[string]bool)
	for _, p := range posts {
		assert.Equal(t, models.PlatformReddit, p.Platform)
		assert.NotEmpty(t, p.Title)
		assert.Nil(t, p.Views)
		assert.False(t, ids[p.PostID], "duplicate post id %s", p.PostID)
		ids[p.PostID] = true
	}
}

func TestMockCallsModeAndWindow(t *testing.T) {
	adapter := NewMockAdapter(7, testLogger())
	cfg := models.CollectionConfig{
		Platforms:       []string{models.PlatformTikTok, models.PlatformInstagram},
		Keywords:        []string{"glossier", "tatcha"},
		MaxCalls:        3,
		IncludeComments: true,
		TimeRange:       models.TimeRange{Start: "2024-03-01", End: "2024-03-10"},
	}
	window, err := cfg.TimeRange.Window()
	require.NoError(t, err)

	posts := allPosts(drain(adapter.Collect(context.Background(), cfg)))
	assert.Len(t, posts, 60)
	for _, p := range posts {
		assert.True(t, window.Contains(p.PostedAt), "%s outside window", p.PostedAt)
		require.NotNil(t, p.Likes)
		require.NotNil(t, p.CommentsCount)
		assert.LessOrEqual(t, len(p.Comments), mockMaxComments)
		assert.LessOrEqual(t, int64(len(p.Comments)), *p.CommentsCount)
		assert.NotNil(t, p.Views)
	}
}

func TestMockIsDeterministic(t *testing.T) {
	cfg := models.CollectionConfig{
		Platforms: []string{models.PlatformTwitter, models.PlatformYouTube},
		Keywords:  []string{"glossier"},
		TimeRange: models.TimeRange{Start: "2024-01-01", End: "2024-06-30"},
	}
	ids := func(seed uint64) []string {
		var out []string
		for _, p := range allPosts(drain(NewMockAdapter(seed, testLogger()).Collect(context.Background(), cfg))) {
			out = append(out, p.PostID)
		}
		return out
	}

	first := ids(1)
	assert.Len(t, first, 40)
	assert.Equal(t, first, ids(1))
	assert.NotEqual(t, first, ids(2))
}

func TestMockFetchEngagements(t *testing.T) {
	adapter := NewMockAdapter(1, testLogger())
	urls := []string{"https://reddit.com/p/1", "https://tiktok.com/p/2"}

	snapshots := adapter.FetchEngagements(context.Background(), urls)
	require.Len(t, snapshots, 2)
	for i, s := range snapshots {
		assert.Equal(t, urls[i], s.PostURL)
		assert.NotNil(t, s.Likes)
	}
}

func TestPowerLawInt(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	small := 0
	for i := 0; i < 2000; i++ {
		v := powerLawInt(rng, 1, 50000)
		assert.GreaterOrEqual(t, v, int64(1))
		assert.LessOrEqual(t, v, int64(50000))
		if v < 100 {
			small++
		}
		z := powerLawInt(rng, 0, 10)
		assert.GreaterOrEqual(t, z, int64(0))
		assert.LessOrEqual(t, z, int64(9))
	}
	// most samples sit at the low end
	assert.Greater(t, small, 1500)
}

func TestMockWindowDefaults(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	w := mockWindow(models.Window{}, now)
	assert.Equal(t, now, w.End)
	assert.Equal(t, now.AddDate(0, 0, -90), w.Start)

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	w = mockWindow(models.Window{Start: start}, now)
	assert.Equal(t, start.AddDate(0, 0, 90), w.End)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", redditMaxQuery))

	long := strings.Repeat("é", redditMaxQuery+10)
	cut := truncateRunes(long, redditMaxQuery)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, redditMaxQuery, utf8.RuneCountInString(cut))

	mixed := strings.Repeat("a", redditMaxQuery-1) + "日本"
	assert.Equal(t, strings.Repeat("a", redditMaxQuery-1)+"日", truncateRunes(mixed, redditMaxQuery))
}
