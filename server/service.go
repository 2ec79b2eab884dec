package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/jobs"
	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/normalizer"
	"github.com/brettboylen/social-listener/worker"
)

var (
	// ErrConflict is returned when cancelling a run that has already finished
	ErrConflict = errors.New("collection already finished")
	// ErrEmptyEnrichment is returned for an enrichment request naming
	// neither a run nor any posts
	ErrEmptyEnrichment = errors.New("enrichment request needs a collection_id or post_ids")
)

// RowWriter appends rows to the row store
type RowWriter interface {
	InsertRows(ctx context.Context, table string, rows []map[string]any) error
}

// StatusStore is the status document store as seen by the API
type StatusStore interface {
	Create(ctx context.Context, status *models.CollectionStatus) error
	Get(ctx context.Context, collectionID string) (*models.CollectionStatus, error)
	Update(ctx context.Context, collectionID string, upd models.StatusUpdate) error
}

// CreateRequest describes a new collection run
type CreateRequest struct {
	UserID              string   `json:"user_id"`
	OrgID               string   `json:"org_id"`
	Question            string   `json:"original_question"`
	Platforms           []string `json:"platforms"`
	Keywords            []string `json:"keywords"`
	ChannelURLs         []string `json:"channel_urls"`
	TimeRangeDays       int      `json:"time_range_days"`
	MaxPostsPerPlatform int      `json:"max_posts_per_platform"`
	MaxCalls            int      `json:"max_calls"`
	IncludeComments     bool     `json:"include_comments"`
	GeoScope            string   `json:"geo_scope"`
}

// Config builds the run configuration. time_range_days counts back from
// today's date.
func (r CreateRequest) Config(today time.Time) models.CollectionConfig {
	cfg := models.CollectionConfig{
		Platforms:           r.Platforms,
		Keywords:            r.Keywords,
		ChannelURLs:         r.ChannelURLs,
		MaxPostsPerPlatform: r.MaxPostsPerPlatform,
		MaxCalls:            r.MaxCalls,
		IncludeComments:     r.IncludeComments,
		GeoScope:            r.GeoScope,
	}
	if r.TimeRangeDays > 0 {
		today = today.UTC()
		cfg.TimeRange = models.TimeRange{
			Start: today.AddDate(0, 0, -r.TimeRangeDays).Format(time.DateOnly),
			End:   today.Format(time.DateOnly),
		}
	}
	return cfg
}

// CollectionService creates, inspects and cancels collection runs
type CollectionService struct {
	rows       RowWriter
	status     StatusStore
	dispatcher jobs.Dispatcher
	log        *logrus.Logger
	now        func() time.Time
}

func NewCollectionService(rows RowWriter, status StatusStore, dispatcher jobs.Dispatcher, log *logrus.Logger) *CollectionService {
	return &CollectionService{rows: rows, status: status, dispatcher: dispatcher, log: log, now: time.Now}
}

// Create stores the run and its pending status, then dispatches the pipeline
func (s *CollectionService) Create(ctx context.Context, req CreateRequest) (string, error) {
	return s.CreateFromConfig(ctx, req.UserID, req.OrgID, req.Question, req.Config(s.now()))
}

// CreateFromConfig is Create for an already built run configuration
func (s *CollectionService) CreateFromConfig(ctx context.Context, userID, orgID, question string, cfg models.CollectionConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	collectionID := uuid.NewString()
	logger := s.log.WithFields(logrus.Fields{"collection_id": collectionID, "user_id": userID})

	row := normalizer.CollectionRow(collectionID, userID, question, cfg)
	if err := s.rows.InsertRows(ctx, normalizer.TableCollections, []map[string]any{row}); err != nil {
		return "", fmt.Errorf("failed to store collection: %w", err)
	}

	status := &models.CollectionStatus{
		CollectionID: collectionID,
		UserID:       userID,
		OrgID:        orgID,
		Status:       models.StatePending,
		Config:       cfg,
	}
	if err := s.status.Create(ctx, status); err != nil {
		return "", err
	}

	if err := s.dispatcher.DispatchCollection(ctx, collectionID); err != nil {
		msg := fmt.Sprintf("Dispatch error: %v", err)
		if updErr := s.status.Update(context.WithoutCancel(ctx), collectionID, models.Failed(msg)); updErr != nil {
			logger.WithError(updErr).Error("Failed to mark undispatched collection failed")
		}
		return "", err
	}

	logger.WithFields(logrus.Fields{
		"platforms": cfg.Platforms,
		"keywords":  len(cfg.Keywords),
		"cap_mode":  cfg.CapMode(),
	}).Info("Collection created")
	return collectionID, nil
}

// Status returns the status document of a run
func (s *CollectionService) Status(ctx context.Context, collectionID string) (*models.CollectionStatus, error) {
	return s.status.Get(ctx, collectionID)
}

// Cancel flags a running or pending run as cancelled and returns the posts
// collected so far. The worker stops at its next batch boundary.
func (s *CollectionService) Cancel(ctx context.Context, collectionID string) (int64, error) {
	status, err := s.status.Get(ctx, collectionID)
	if err != nil {
		return 0, err
	}
	if status.Status.IsTerminal() {
		return status.PostsCollected, fmt.Errorf("%w: status is %s", ErrConflict, status.Status)
	}

	if err := s.status.Update(ctx, collectionID, models.SetState(models.StateCancelled)); err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"collection_id":   collectionID,
		"previous_status": status.Status,
		"posts_collected": status.PostsCollected,
	}).Info("Collection cancelled")
	return status.PostsCollected, nil
}

// Refresh dispatches an engagement refresh
func (s *CollectionService) Refresh(ctx context.Context, req worker.RefreshRequest) error {
	if req.CollectionID == "" && len(req.PostIDs) == 0 {
		return worker.ErrEmptyRefresh
	}
	return s.dispatcher.DispatchRefresh(ctx, req)
}

// Enrich dispatches enrichment for a known run or for explicit posts
func (s *CollectionService) Enrich(ctx context.Context, job jobs.EnrichmentJob) error {
	if job.CollectionID == "" && len(job.PostIDs) == 0 {
		return ErrEmptyEnrichment
	}
	if len(job.PostIDs) == 0 {
		if _, err := s.status.Get(ctx, job.CollectionID); err != nil {
			return err
		}
	}
	return s.dispatcher.DispatchEnrichment(ctx, job)
}
