package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/models"
)

const (
	mediaTimeout = 30 * time.Second
	// maxMediaBytes caps a single download
	maxMediaBytes = 100 << 20
)

// Uploader is a blob store accepting raw bytes
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

var knownExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

// MediaDownloader fetches post media and re-hosts it in blob storage
type MediaDownloader struct {
	client *http.Client
	store  Uploader
	log    *logrus.Logger
}

// NewMediaDownloader creates a downloader uploading to store
func NewMediaDownloader(store Uploader, log *logrus.Logger) *MediaDownloader {
	return &MediaDownloader{
		client: &http.Client{Timeout: mediaTimeout},
		store:  store,
		log:    log,
	}
}

// Download stores every media URL of post and returns the references of
// the items that succeeded. Failures are logged and skipped.
func (m *MediaDownloader) Download(ctx context.Context, post models.Post, collectionID string) []models.MediaRef {
	refs := make([]models.MediaRef, 0, len(post.MediaURLs))
	for index, mediaURL := range post.MediaURLs {
		ref, err := m.fetch(ctx, mediaURL, collectionID, post.PostID, index)
		if err != nil {
			m.log.WithFields(logrus.Fields{
				"post_id": post.PostID,
				"index":   index,
				"url":     mediaURL,
			}).WithError(err).Warn("Skipped media")
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func (m *MediaDownloader) fetch(ctx context.Context, mediaURL, collectionID, postID string, index int) (models.MediaRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.MediaRef{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxMediaBytes {
		return models.MediaRef{}, fmt.Errorf("media larger than %d bytes", maxMediaBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}

	name := fmt.Sprintf("%s/%s_%d%s", collectionID, postID, index, extension(contentType, mediaURL))
	uri, err := m.store.Upload(ctx, name, data, contentType)
	if err != nil {
		return models.MediaRef{}, err
	}

	return models.MediaRef{
		URI:         uri,
		MediaType:   strings.SplitN(contentType, "/", 2)[0],
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		OriginalURL: mediaURL,
	}, nil
}

// extension picks a file extension from the content type, then the URL path
func extension(contentType, mediaURL string) string {
	if ext, ok := knownExtensions[contentType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if ext := path.Ext(strings.SplitN(mediaURL, "?", 2)[0]); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".bin"
}
