package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/social-listener/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type memoryUploader struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  bool
}

func (m *memoryUploader) Upload(_ context.Context, name string, data []byte, _ string) (string, error) {
	if m.fail {
		return "", errors.New("bucket unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = data
	return "mem://" + name, nil
}

func mediaServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/photo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("/clip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4; codecs=avc1")
		w.Write([]byte("mp4-bytes"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDownloadSkipsFailures(t *testing.T) {
	server := mediaServer(t)
	store := &memoryUploader{}
	downloader := NewMediaDownloader(store, testLogger())

	post := models.Post{
		PostID:    "p1",
		MediaURLs: []string{server.URL + "/photo", server.URL + "/gone", server.URL + "/clip"},
	}
	refs := downloader.Download(context.Background(), post, "c1")

	require.Len(t, refs, 2)
	assert.Equal(t, models.MediaRef{
		URI:         "mem://c1/p1_0.jpg",
		MediaType:   "image",
		ContentType: "image/jpeg",
		SizeBytes:   int64(len("jpeg-bytes")),
		OriginalURL: server.URL + "/photo",
	}, refs[0])
	assert.Equal(t, "mem://c1/p1_2.mp4", refs[1].URI)
	assert.Equal(t, "video", refs[1].MediaType)
	assert.Equal(t, []byte("mp4-bytes"), store.files["c1/p1_2.mp4"])
}

func TestDownloadUploadFailure(t *testing.T) {
	server := mediaServer(t)
	downloader := NewMediaDownloader(&memoryUploader{fail: true}, testLogger())

	refs := downloader.Download(context.Background(), models.Post{PostID: "p1", MediaURLs: []string{server.URL + "/photo"}}, "c1")
	assert.Empty(t, refs)
}

func TestExtension(t *testing.T) {
	tests := []struct {
		contentType string
		url         string
		expected    string
	}{
		{"image/png", "https://x/a", ".png"},
		{"application/x-unknown-thing", "https://x/a.avif?size=1", ".avif"},
		{"application/x-unknown-thing", "https://x/a", ".bin"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType+tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, extension(tt.contentType, tt.url))
		})
	}
}
