package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/social-listener/db"
	"github.com/brettboylen/social-listener/jobs"
	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/normalizer"
	"github.com/brettboylen/social-listener/worker"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type memoryRows struct {
	mu   sync.Mutex
	rows map[string][]map[string]any
}

func (m *memoryRows) InsertRows(_ context.Context, table string, rows []map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = make(map[string][]map[string]any)
	}
	m.rows[table] = append(m.rows[table], rows...)
	return nil
}

type fakeDispatcher struct {
	collections []string
	refreshes   []worker.RefreshRequest
	enrichments []jobs.EnrichmentJob
	err         error
}

func (f *fakeDispatcher) DispatchCollection(_ context.Context, collectionID string) error {
	if f.err != nil {
		return f.err
	}
	f.collections = append(f.collections, collectionID)
	return nil
}

func (f *fakeDispatcher) DispatchRefresh(_ context.Context, req worker.RefreshRequest) error {
	f.refreshes = append(f.refreshes, req)
	return f.err
}

func (f *fakeDispatcher) DispatchEnrichment(_ context.Context, job jobs.EnrichmentJob) error {
	f.enrichments = append(f.enrichments, job)
	return f.err
}

type fixture struct {
	rows       *memoryRows
	status     *db.MemoryStatusStore
	dispatcher *fakeDispatcher
	svc        *CollectionService
	server     *Server
}

func newFixture() *fixture {
	f := &fixture{
		rows:       &memoryRows{},
		status:     db.NewMemoryStatusStore(),
		dispatcher: &fakeDispatcher{},
	}
	f.svc = NewCollectionService(f.rows, f.status, f.dispatcher, testLogger())
	f.svc.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }
	f.server = New(f.svc, 0, testLogger())
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestCreateRequestConfig(t *testing.T) {
	today := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)

	cfg := CreateRequest{Platforms: []string{"reddit"}, Keywords: []string{"go"}, TimeRangeDays: 7}.Config(today)
	assert.Equal(t, "2026-03-03", cfg.TimeRange.Start)
	assert.Equal(t, "2026-03-10", cfg.TimeRange.End)
	assert.NoError(t, cfg.Validate())

	cfg = CreateRequest{Platforms: []string{"reddit"}}.Config(today)
	assert.Empty(t, cfg.TimeRange.Start)
	assert.Empty(t, cfg.TimeRange.End)
}

func TestCreateCollection(t *testing.T) {
	f := newFixture()

	code, body := f.do(t, http.MethodPost, "/api/collections",
		`{"user_id":"u1","original_question":"what do people say about go?","platforms":["reddit","tiktok"],"keywords":["golang"],"time_range_days":30,"max_posts_per_platform":50}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "pending", body["status"])

	id, _ := body["collection_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, []string{id}, f.dispatcher.collections)

	rows := f.rows.rows[normalizer.TableCollections]
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0]["collection_id"])
	assert.Equal(t, "what do people say about go?", rows[0]["original_question"])

	status, err := f.status.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, status.Status)
	assert.Equal(t, "u1", status.UserID)
	assert.Equal(t, 50, status.Config.MaxPostsPerPlatform)
	assert.Equal(t, "2026-02-08", status.Config.TimeRange.Start)
}

func TestCreateCollectionErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{name: "Malformed body", body: `{"platforms":`, expected: http.StatusBadRequest},
		{name: "No platforms", body: `{"keywords":["go"]}`, expected: http.StatusBadRequest},
		{name: "Unknown platform", body: `{"platforms":["myspace"],"keywords":["go"]}`, expected: http.StatusBadRequest},
		{name: "No keywords or channels", body: `{"platforms":["reddit"]}`, expected: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			code, body := f.do(t, http.MethodPost, "/api/collections", tt.body)
			assert.Equal(t, tt.expected, code)
			assert.NotEmpty(t, body["error"])
			assert.Empty(t, f.dispatcher.collections)
		})
	}
}

func TestCreateCollectionDispatchFailure(t *testing.T) {
	f := newFixture()
	f.dispatcher.err = errors.New("broker down")

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:    "u1",
		Platforms: []string{"reddit"},
		Keywords:  []string{"go"},
	})
	require.ErrorContains(t, err, "broker down")

	rows := f.rows.rows[normalizer.TableCollections]
	require.Len(t, rows, 1)
	status, err := f.status.Get(context.Background(), rows[0]["collection_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, status.Status)
	assert.Contains(t, status.ErrorMessage, "broker down")
}

func TestGetCollection(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.status.Create(context.Background(), &models.CollectionStatus{CollectionID: "c1", PostsCollected: 12}))

	code, body := f.do(t, http.MethodGet, "/api/collections/c1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", body["status"])
	assert.EqualValues(t, 12, body["posts_collected"])

	code, _ = f.do(t, http.MethodGet, "/api/collections/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCancelCollection(t *testing.T) {
	tests := []struct {
		name     string
		state    models.State
		expected int
	}{
		{name: "Pending", state: models.StatePending, expected: http.StatusOK},
		{name: "Collecting", state: models.StateCollecting, expected: http.StatusOK},
		{name: "Enriching", state: models.StateEnriching, expected: http.StatusOK},
		{name: "Completed", state: models.StateCompleted, expected: http.StatusConflict},
		{name: "Failed", state: models.StateFailed, expected: http.StatusConflict},
		{name: "Already cancelled", state: models.StateCancelled, expected: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			require.NoError(t, f.status.Create(context.Background(), &models.CollectionStatus{
				CollectionID:   "c1",
				Status:         tt.state,
				PostsCollected: 7,
			}))

			code, body := f.do(t, http.MethodPost, "/api/collections/c1/cancel", "")
			assert.Equal(t, tt.expected, code)

			status, err := f.status.Get(context.Background(), "c1")
			require.NoError(t, err)
			if tt.expected == http.StatusOK {
				assert.EqualValues(t, 7, body["posts_collected"])
				assert.Equal(t, models.StateCancelled, status.Status)
			} else {
				assert.Equal(t, tt.state, status.Status)
			}
		})
	}

	t.Run("Unknown collection", func(t *testing.T) {
		f := newFixture()
		code, _ := f.do(t, http.MethodPost, "/api/collections/nope/cancel", "")
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestRefreshEngagements(t *testing.T) {
	f := newFixture()

	code, _ := f.do(t, http.MethodPost, "/api/engagements/refresh", `{"post_ids":["p1","p2"]}`)
	assert.Equal(t, http.StatusAccepted, code)
	require.Len(t, f.dispatcher.refreshes, 1)
	assert.Equal(t, []string{"p1", "p2"}, f.dispatcher.refreshes[0].PostIDs)

	code, _ = f.do(t, http.MethodPost, "/api/engagements/refresh", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, f.dispatcher.refreshes, 1)
}

func TestEnrich(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.status.Create(context.Background(), &models.CollectionStatus{CollectionID: "c1", Status: models.StateCompleted}))

	tests := []struct {
		name     string
		body     string
		expected int
		job      *jobs.EnrichmentJob
	}{
		{name: "Collection", body: `{"collection_id":"c1"}`, expected: http.StatusAccepted, job: &jobs.EnrichmentJob{CollectionID: "c1"}},
		{name: "Posts", body: `{"post_ids":["p1","p2"]}`, expected: http.StatusAccepted, job: &jobs.EnrichmentJob{PostIDs: []string{"p1", "p2"}}},
		{name: "Unknown collection", body: `{"collection_id":"nope"}`, expected: http.StatusNotFound},
		{name: "Empty", body: `{}`, expected: http.StatusBadRequest},
		{name: "Malformed body", body: `{"post_ids":`, expected: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.dispatcher.enrichments = nil
			code, _ := f.do(t, http.MethodPost, "/api/enrichments", tt.body)
			assert.Equal(t, tt.expected, code)
			if tt.job == nil {
				assert.Empty(t, f.dispatcher.enrichments)
				return
			}
			assert.Equal(t, []jobs.EnrichmentJob{*tt.job}, f.dispatcher.enrichments)
		})
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
