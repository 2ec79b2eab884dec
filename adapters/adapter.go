// Package adapters implements the platform collection contract against the
// live provider API and a synthetic generator.
package adapters

import (
	"context"
	"errors"
	"iter"

	"github.com/brettboylen/social-listener/models"
)

// Width of the platform-level and keyword-level worker pools
const poolWidth = 5

// ErrNoCredentials is returned when an adapter is built without any API key
var ErrNoCredentials = errors.New("no provider API keys configured")

// Adapter collects posts for the platforms it supports
type Adapter interface {
	// Name identifies the adapter in logs
	Name() string
	SupportedPlatforms() []string
	// Collect returns a lazy, finite sequence of batches. Breaking out of
	// the sequence stops the adapter's producers.
	Collect(ctx context.Context, cfg models.CollectionConfig) iter.Seq[models.Batch]
	// FetchEngagements re-reads counters for known posts. URLs the adapter
	// cannot refresh are left out of the result.
	FetchEngagements(ctx context.Context, postURLs []string) []models.EngagementSnapshot
}

// Supports reports whether a lists platform among its supported platforms
func Supports(a Adapter, platform string) bool {
	for _, p := range a.SupportedPlatforms() {
		if p == platform {
			return true
		}
	}
	return false
}
