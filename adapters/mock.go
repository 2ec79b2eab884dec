package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/models"
)

const (
	mockBatchSize    = 10
	mockDefaultDays  = 90
	mockMaxComments  = 20
	powerLawExponent = 2.5
)

// MockAdapter generates synthetic but statistically plausible posts for
// environments without provider credentials. Output is deterministic for a
// given seed and configuration.
type MockAdapter struct {
	seed uint64
	log  *logrus.Logger
}

// NewMockAdapter creates a mock adapter
func NewMockAdapter(seed uint64, log *logrus.Logger) *MockAdapter {
	return &MockAdapter{seed: seed, log: log}
}

func (m *MockAdapter) Name() string {
	return "mock"
}

func (m *MockAdapter) SupportedPlatforms() []string {
	return append([]string(nil), models.Platforms...)
}

// Collect generates batches of ten posts per platform. In call-count mode
// each platform gets PageLimit batches, in post-count mode batches are
// generated until the cap is met.
func (m *MockAdapter) Collect(ctx context.Context, cfg models.CollectionConfig) iter.Seq[models.Batch] {
	return stream(ctx, func(ctx context.Context, emit emitFunc) {
		window, err := cfg.TimeRange.Window()
		if err != nil {
			m.log.WithError(err).Error("Invalid time range, nothing generated")
			return
		}
		window = mockWindow(window, time.Now().UTC())

		rng := rand.New(rand.NewPCG(m.seed, m.seed^0x9e3779b97f4a7c15))
		for _, platform := range cfg.Platforms {
			if !Supports(m, platform) {
				continue
			}
			if !m.generatePlatform(ctx, rng, platform, cfg, window, emit) {
				return
			}
		}
	})
}

func (m *MockAdapter) generatePlatform(ctx context.Context, rng *rand.Rand, platform string, cfg models.CollectionConfig, window models.Window, emit emitFunc) bool {
	b := newBudget(cfg.MaxPostsPerPlatform)
	handles := mockHandles[platform]
	generated := 0

	for page := 0; page < cfg.PageLimit(); page++ {
		if ctx.Err() != nil {
			return false
		}
		n := b.take(mockBatchSize)
		if n == 0 {
			break
		}

		var batch models.Batch
		seen := make(map[string]bool)
		for i := 0; i < n; i++ {
			handle := handles[rng.IntN(len(handles))]
			batch.Posts = append(batch.Posts, m.post(rng, platform, handle, generated+i, cfg, window))
			if !seen[handle] {
				seen[handle] = true
				batch.Channels = append(batch.Channels, m.channel(rng, platform, handle))
			}
		}
		generated += n

		if !emit(batch) {
			return false
		}
	}

	m.log.WithFields(logrus.Fields{
		"platform": platform,
		"posts":    generated,
	}).Info("Mock platform generation finished")
	return true
}

// FetchEngagements returns fresh synthetic counters for every URL
func (m *MockAdapter) FetchEngagements(ctx context.Context, postURLs []string) []models.EngagementSnapshot {
	rng := rand.New(rand.NewPCG(m.seed, uint64(len(postURLs))))
	snapshots := make([]models.EngagementSnapshot, 0, len(postURLs))
	for _, postURL := range postURLs {
		snapshots = append(snapshots, models.EngagementSnapshot{
			PostURL:       postURL,
			Likes:         models.Int64(powerLawInt(rng, 5, 100000)),
			Shares:        models.Int64(powerLawInt(rng, 0, 10000)),
			CommentsCount: models.Int64(powerLawInt(rng, 0, 5000)),
			Views:         models.Int64(powerLawInt(rng, 100, 5000000)),
			Saves:         models.Int64(powerLawInt(rng, 0, 20000)),
			Comments:      mockCommentList(rng, rng.IntN(6), nil),
		})
	}
	return snapshots
}

func (m *MockAdapter) post(rng *rand.Rand, platform, handle string, index int, cfg models.CollectionConfig, window models.Window) models.Post {
	id := mockPostID(rng, platform, handle, index)
	content, title := mockContent(rng, platform, cfg.Keywords)
	types := mockPostTypes[platform]
	postType := types[rng.IntN(len(types))]

	likes := powerLawInt(rng, 1, 50000)
	commentsCount := powerLawInt(rng, 0, int64(float64(likes)*0.3)+1)

	mediaCount := 1 + rng.IntN(4)
	switch {
	case postType == "video" || postType == "reel":
		mediaCount = 1
	case postType == "text" || postType == "link":
		mediaCount = 0
	}
	media := make([]string, 0, mediaCount)
	for j := 0; j < mediaCount; j++ {
		media = append(media, fmt.Sprintf("https://picsum.photos/seed/%s_%d/1080/1080", id, j))
	}

	author := handle
	subreddit := ""
	if platform == models.PlatformReddit {
		author = mockRedditAuthors[rng.IntN(len(mockRedditAuthors))]
		subreddit = handle
	}

	post := models.Post{
		PostID:        id,
		Platform:      platform,
		ChannelHandle: author,
		ChannelID:     platform + "_" + handle,
		Title:         title,
		Content:       content,
		PostURL:       fmt.Sprintf("https://%s.com/p/%s", platform, id),
		PostedAt:      randomTime(rng, window),
		PostType:      postType,
		MediaURLs:     media,
		Likes:         models.Int64(likes),
		Shares:        models.Int64(powerLawInt(rng, 0, int64(float64(likes)*0.2)+1)),
		CommentsCount: models.Int64(commentsCount),
		PlatformMetadata: map[string]any{
			"platform":  platform,
			"author":    author,
			"subreddit": subreddit,
			"synthetic": true,
		},
	}

	switch platform {
	case models.PlatformTikTok, models.PlatformInstagram, models.PlatformYouTube:
		post.Views = models.Int64(powerLawInt(rng, 100, 2000000))
	}
	if platform != models.PlatformReddit && platform != models.PlatformYouTube {
		post.Saves = models.Int64(powerLawInt(rng, 0, int64(float64(likes)*0.5)+1))
	}

	if cfg.IncludeComments && commentsCount > 0 {
		post.Comments = mockCommentList(rng, int(min(commentsCount, mockMaxComments)), cfg.Keywords)
	}
	return post
}

func (m *MockAdapter) channel(rng *rand.Rand, platform, handle string) models.Channel {
	created := time.Now().UTC().AddDate(0, 0, -(365 + rng.IntN(1635)))
	return models.Channel{
		ChannelID:     platform + "_" + handle,
		Platform:      platform,
		ChannelHandle: handle,
		Subscribers:   models.Int64(powerLawInt(rng, 1000, 5000000)),
		TotalPosts:    models.Int64(int64(50 + rng.IntN(4950))),
		ChannelURL:    fmt.Sprintf("https://%s.com/%s", platform, url.PathEscape(handle)),
		Description:   fmt.Sprintf("Official %s account on %s", handle, platform),
		CreatedDate:   &created,
		ChannelMetadata: map[string]any{
			"verified": rng.Float64() > 0.7,
		},
	}
}

// powerLawInt samples [lo, hi] by inverse CDF so most values are small and
// a few are very large. A zero lo shifts the result down by one.
func powerLawInt(rng *rand.Rand, lo, hi int64) int64 {
	if hi <= 0 {
		return 0
	}
	a := float64(max(lo, 1))
	b := math.Max(float64(hi), a+1)
	e := 1 - powerLawExponent

	u := rng.Float64()
	x := math.Pow((math.Pow(b, e)-math.Pow(a, e))*u+math.Pow(a, e), 1/e)
	result := int64(math.Min(math.Max(x, a), b))
	if lo > 0 {
		return result
	}
	return result - 1
}

func mockPostID(rng *rand.Rand, platform, handle string, index int) string {
	raw := fmt.Sprintf("%s:%s:%d:%08x", platform, handle, index, rng.Uint32())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// mockContent fills a platform template. Reddit posts get the template as
// title and a generated body.
func mockContent(rng *rand.Rand, platform string, keywords []string) (string, string) {
	brand := "GenericBrand"
	if len(keywords) > 0 {
		brand = keywords[rng.IntN(len(keywords))]
	}
	other := "OtherBrand"
	var others []string
	for _, k := range keywords {
		if k != brand {
			others = append(others, k)
		}
	}
	if len(others) > 0 {
		other = others[rng.IntN(len(others))]
	}
	product := mockProducts[rng.IntN(len(mockProducts))]
	concern := mockConcerns[rng.IntN(len(mockConcerns))]
	weeks := strconv.Itoa(1 + rng.IntN(12))

	templates := mockTemplates[platform]
	text := strings.NewReplacer(
		"{brand}", brand,
		"{other}", other,
		"{product}", product,
		"{concern}", concern,
		"{weeks}", weeks,
	).Replace(templates[rng.IntN(len(templates))])

	if platform != models.PlatformReddit {
		return text, ""
	}
	body := fmt.Sprintf("I've been using %s's %s for about %d weeks now. Here are my thoughts on it for anyone dealing with %s. Full review and photos in the post.",
		brand, product, 1+rng.IntN(12), concern)
	return body, text
}

func mockCommentList(rng *rand.Rand, n int, keywords []string) []models.Comment {
	comments := make([]models.Comment, 0, n)
	for i := 0; i < n; i++ {
		brand := "Brand"
		if len(keywords) > 0 {
			brand = keywords[rng.IntN(len(keywords))]
		}
		text := strings.ReplaceAll(mockComments[rng.IntN(len(mockComments))], "{brand}", brand)
		comments = append(comments, models.Comment{
			Author:   fmt.Sprintf("user_%d", 1000+rng.IntN(99000)),
			Text:     text,
			PostedAt: time.Now().UTC(),
			Likes:    models.Int64(powerLawInt(rng, 0, 500)),
		})
	}
	return comments
}

// mockWindow closes any open bound, defaulting to the last 90 days
func mockWindow(w models.Window, now time.Time) models.Window {
	span := mockDefaultDays * 24 * time.Hour
	switch {
	case w.Start.IsZero() && w.End.IsZero():
		w.End = now
		w.Start = now.Add(-span)
	case w.Start.IsZero():
		w.Start = w.End.Add(-span)
	case w.End.IsZero():
		w.End = now
		if w.End.Before(w.Start) {
			w.End = w.Start.Add(span)
		}
	}
	return w
}

func randomTime(rng *rand.Rand, w models.Window) time.Time {
	span := w.End.Sub(w.Start)
	if span <= 0 {
		return w.Start
	}
	return w.Start.Add(time.Duration(rng.Int64N(int64(span) + 1))).Truncate(time.Second)
}
