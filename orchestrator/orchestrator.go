// Package orchestrator routes each requested platform to the adapter that
// supports it and merges the resulting batch streams.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/adapters"
	"github.com/brettboylen/social-listener/models"
)

// ErrNoAdapter is returned when no configured adapter supports a platform
var ErrNoAdapter = errors.New("no adapter supports platform")

// Orchestrator is the single entry point for collection
type Orchestrator struct {
	adapters []adapters.Adapter
	log      *logrus.Logger
}

// New creates an orchestrator over adapters. Earlier adapters win when two
// support the same platform.
func New(log *logrus.Logger, adapterList ...adapters.Adapter) *Orchestrator {
	return &Orchestrator{adapters: adapterList, log: log}
}

// NewFromSettings picks the live adapter when any provider key is present.
// Without keys, development falls back to the mock adapter and production
// fails.
func NewFromSettings(client adapters.Provider, production bool, mockSeed uint64, log *logrus.Logger) (*Orchestrator, error) {
	live, err := adapters.NewLiveAdapter(client, log)
	switch {
	case err == nil:
		log.WithField("adapter", live.Name()).Info("Using live adapter")
		return New(log, live), nil
	case errors.Is(err, adapters.ErrNoCredentials) && !production:
		log.WithField("seed", mockSeed).Info("No provider keys found, using mock adapter")
		return New(log, adapters.NewMockAdapter(mockSeed, log)), nil
	default:
		return nil, fmt.Errorf("failed to create live adapter: %w", err)
	}
}

// AdapterFor returns the first adapter supporting platform
func (o *Orchestrator) AdapterFor(platform string) (adapters.Adapter, error) {
	for _, a := range o.adapters {
		if adapters.Supports(a, platform) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAdapter, platform)
}

// CollectAll streams batches for every requested platform. Platforms owned
// by the same adapter are collected in one Collect call. Platforms with no
// adapter are logged and skipped.
func (o *Orchestrator) CollectAll(ctx context.Context, cfg models.CollectionConfig) iter.Seq[models.Batch] {
	return func(yield func(models.Batch) bool) {
		var order []adapters.Adapter
		owned := make(map[adapters.Adapter][]string)

		for _, platform := range cfg.Platforms {
			a, err := o.AdapterFor(platform)
			if err != nil {
				o.log.WithField("platform", platform).WithError(err).Warn("Skipping platform")
				continue
			}
			if _, ok := owned[a]; !ok {
				order = append(order, a)
			}
			owned[a] = append(owned[a], platform)
		}

		for _, a := range order {
			sub := cfg
			sub.Platforms = owned[a]

			o.log.WithFields(logrus.Fields{
				"adapter":   a.Name(),
				"platforms": sub.Platforms,
			}).Info("Collecting via adapter")

			for batch := range a.Collect(ctx, sub) {
				if len(batch.Posts) == 0 {
					continue
				}
				if !yield(batch) {
					return
				}
			}
		}
	}
}

// FetchEngagements delegates to the adapter owning platform
func (o *Orchestrator) FetchEngagements(ctx context.Context, platform string, postURLs []string) ([]models.EngagementSnapshot, error) {
	a, err := o.AdapterFor(platform)
	if err != nil {
		return nil, err
	}
	return a.FetchEngagements(ctx, postURLs), nil
}
