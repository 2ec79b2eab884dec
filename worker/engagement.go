package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/db"
	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/normalizer"
)

// ErrEmptyRefresh is returned for a refresh request naming neither a run
// nor any posts
var ErrEmptyRefresh = errors.New("refresh request needs a collection_id or post_ids")

// RefreshRequest selects posts either by run or by explicit ids
type RefreshRequest struct {
	CollectionID string   `json:"collection_id,omitempty"`
	PostIDs      []string `json:"post_ids,omitempty"`
}

// PostStore resolves persisted posts and appends engagement snapshots
type PostStore interface {
	PostRefsForCollection(ctx context.Context, collectionID string) ([]db.PostRef, error)
	PostRefsByIDs(ctx context.Context, postIDs []string) ([]db.PostRef, error)
	InsertRows(ctx context.Context, table string, rows []map[string]any) error
}

// EngagementSource re-reads counters for known post URLs of one platform
type EngagementSource interface {
	FetchEngagements(ctx context.Context, platform string, postURLs []string) ([]models.EngagementSnapshot, error)
}

// Refresher appends fresh engagement snapshots for persisted posts. Old
// snapshots are never overwritten.
type Refresher struct {
	posts  PostStore
	source EngagementSource
	log    *logrus.Logger
}

func NewRefresher(posts PostStore, source EngagementSource, log *logrus.Logger) *Refresher {
	return &Refresher{posts: posts, source: source, log: log}
}

// Run refreshes the selected posts and returns how many snapshots were appended
func (r *Refresher) Run(ctx context.Context, req RefreshRequest) (int, error) {
	var refs []db.PostRef
	var err error
	switch {
	case req.CollectionID != "":
		refs, err = r.posts.PostRefsForCollection(ctx, req.CollectionID)
	case len(req.PostIDs) > 0:
		refs, err = r.posts.PostRefsByIDs(ctx, req.PostIDs)
	default:
		return 0, ErrEmptyRefresh
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve posts: %w", err)
	}
	if len(refs) == 0 {
		r.log.Info("No posts to refresh")
		return 0, nil
	}

	r.log.WithField("posts", len(refs)).Info("Refreshing engagements")

	var order []string
	byPlatform := make(map[string][]db.PostRef)
	for _, ref := range refs {
		if _, ok := byPlatform[ref.Platform]; !ok {
			order = append(order, ref.Platform)
		}
		byPlatform[ref.Platform] = append(byPlatform[ref.Platform], ref)
	}

	inserted := 0
	for _, platform := range order {
		group := byPlatform[platform]
		urls := make([]string, 0, len(group))
		idByURL := make(map[string]string, len(group))
		for _, ref := range group {
			if ref.PostURL == "" {
				continue
			}
			urls = append(urls, ref.PostURL)
			idByURL[ref.PostURL] = ref.PostID
		}

		snapshots, err := r.source.FetchEngagements(ctx, platform, urls)
		if err != nil {
			r.log.WithField("platform", platform).WithError(err).Warn("Skipping engagement refresh")
			continue
		}

		rows := make([]map[string]any, 0, len(snapshots))
		for _, s := range snapshots {
			postID, ok := idByURL[s.PostURL]
			if !ok {
				continue
			}
			rows = append(rows, normalizer.RefreshRow(postID, s))
		}
		if len(rows) == 0 {
			continue
		}

		if err := r.posts.InsertRows(ctx, normalizer.TableEngagements, rows); err != nil {
			return inserted, fmt.Errorf("failed to persist %s engagements: %w", platform, err)
		}
		inserted += len(rows)
		r.log.WithFields(logrus.Fields{"platform": platform, "snapshots": len(rows)}).Info("Engagement snapshots inserted")
	}
	return inserted, nil
}
