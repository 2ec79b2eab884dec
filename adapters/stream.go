package adapters

import (
	"context"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/brettboylen/social-listener/models"
)

// emitFunc hands a batch to the consumer. It returns false once the
// consumer has stopped, after which producers should return.
type emitFunc func(models.Batch) bool

// stream runs produce in its own goroutine and yields every emitted batch
// on the consumer side. Breaking out of the loop cancels produce's context.
func stream(ctx context.Context, produce func(ctx context.Context, emit emitFunc)) iter.Seq[models.Batch] {
	return func(yield func(models.Batch) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		batches := make(chan models.Batch)
		go func() {
			defer close(batches)
			produce(ctx, func(b models.Batch) bool {
				select {
				case batches <- b:
					return true
				case <-ctx.Done():
					return false
				}
			})
		}()

		for b := range batches {
			if !yield(b) {
				cancel()
				// let producers observe the cancellation and exit
				for range batches {
				}
				return
			}
		}
	}
}

// job is one unit of work for fanout
type job struct {
	name string
	run  func(ctx context.Context) error
}

// fanout runs jobs on a bounded pool. A failing job is logged and never
// cancels its siblings.
func fanout(ctx context.Context, log *logrus.Logger, jobs []job) {
	var g errgroup.Group
	g.SetLimit(poolWidth)

	for _, j := range jobs {
		g.Go(func() (err error) {
			if ctx.Err() != nil {
				return nil
			}
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				if err != nil && ctx.Err() == nil {
					log.WithError(err).WithField("task", j.name).Warn("Search task failed")
				}
				err = nil
			}()
			return j.run(ctx)
		})
	}

	_ = g.Wait()
}
