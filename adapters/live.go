package adapters

import (
	"context"
	"fmt"
	"iter"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
)

// Provider is the subset of api.Client the live adapter needs
type Provider interface {
	Get(ctx context.Context, platform, path string, params url.Values) (gjson.Result, error)
	Platforms() []string
}

// LiveAdapter collects from the provider API for every platform it holds a
// key for
type LiveAdapter struct {
	client Provider
	log    *logrus.Logger
}

// NewLiveAdapter creates a live adapter. It fails when the client has no
// credentials at all.
func NewLiveAdapter(client Provider, log *logrus.Logger) (*LiveAdapter, error) {
	if len(client.Platforms()) == 0 {
		return nil, ErrNoCredentials
	}

	log.WithField("platforms", client.Platforms()).Info("Live adapter initialized")
	return &LiveAdapter{client: client, log: log}, nil
}

func (a *LiveAdapter) Name() string {
	return "live"
}

func (a *LiveAdapter) SupportedPlatforms() []string {
	return a.client.Platforms()
}

// Collect fans out across platforms, then across each platform's search tasks
func (a *LiveAdapter) Collect(ctx context.Context, cfg models.CollectionConfig) iter.Seq[models.Batch] {
	return stream(ctx, func(ctx context.Context, emit emitFunc) {
		window, err := cfg.TimeRange.Window()
		if err != nil {
			a.log.WithError(err).Error("Invalid time range, nothing collected")
			return
		}

		var jobs []job
		for _, platform := range cfg.Platforms {
			if !Supports(a, platform) {
				continue
			}
			jobs = append(jobs, job{
				name: platform,
				run: func(ctx context.Context) error {
					return a.collectPlatform(ctx, platform, cfg, window, emit)
				},
			})
		}
		fanout(ctx, a.log, jobs)
	})
}

func (a *LiveAdapter) collectPlatform(ctx context.Context, platform string, cfg models.CollectionConfig, window models.Window, emit emitFunc) error {
	var tasks []searchTask
	switch platform {
	case models.PlatformInstagram:
		tasks = a.instagramTasks(cfg)
	case models.PlatformTikTok:
		tasks = a.tiktokTasks(cfg)
	case models.PlatformTwitter:
		tasks = a.twitterTasks(cfg)
	case models.PlatformReddit:
		tasks = a.redditTasks(cfg)
	case models.PlatformYouTube:
		tasks = a.youtubeTasks(cfg)
	default:
		return fmt.Errorf("no collector for platform %s", platform)
	}

	if len(tasks) == 0 {
		return nil
	}

	limits := taskLimits{
		pages:  cfg.PageLimit(),
		window: window,
		budget: newBudget(cfg.MaxPostsPerPlatform),
	}

	a.log.WithFields(logrus.Fields{
		"platform":   platform,
		"tasks":      len(tasks),
		"cap_mode":   cfg.CapMode(),
		"page_limit": limits.pages,
	}).Info("Collecting platform")

	jobs := make([]job, 0, len(tasks))
	for _, task := range tasks {
		jobs = append(jobs, job{
			name: platform + "/" + task.name,
			run: func(ctx context.Context) error {
				return task.run(ctx, limits, emit)
			},
		})
	}
	fanout(ctx, a.log, jobs)

	a.log.WithFields(logrus.Fields{
		"platform": platform,
		"posts":    limits.budget.used.Load(),
	}).Info("Platform collection finished")
	return nil
}

// pageOf builds a searchPage from items and a cursor
func pageOf(items []gjson.Result, next string, more bool) searchPage {
	return searchPage{items: items, next: next, more: more}
}

// firstArray returns the first of results that is a non-empty array
func firstArray(results ...gjson.Result) []gjson.Result {
	for _, r := range results {
		if items := r.Array(); r.IsArray() && len(items) > 0 {
			return items
		}
	}
	return nil
}
