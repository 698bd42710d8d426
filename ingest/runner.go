package ingest

import (
	"context"
	"log"
	"math/rand"
	"sync/atomic"
	"time"
)

// Runner drains every registered source on a fixed cadence with jitter.
// Feed fetches can outlast the interval, so overlapping runs are skipped
// rather than queued.
type Runner struct {
	service  *Service
	sources  []Source
	interval time.Duration
	jitter   time.Duration
	running  atomic.Bool
}

func NewRunner(service *Service, interval, jitter time.Duration, sources ...Source) *Runner {
	if interval < 30*time.Second {
		interval = 30 * time.Second
	}
	return &Runner{
		service:  service,
		sources:  sources,
		interval: interval,
		jitter:   jitter,
	}
}

// Run fetches immediately, then loops until the context is cancelled. An
// in-flight run always completes before Run returns.
func (r *Runner) Run(ctx context.Context) {
	log.Printf("ingest: loop started (interval=%v, jitter<=%v)", r.interval, r.jitter)

	r.RunOnce(ctx)
	for {
		wait := r.interval
		if r.jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(r.jitter)))
		}
		select {
		case <-ctx.Done():
			log.Printf("ingest: loop stopped")
			return
		case <-time.After(wait):
			r.RunOnce(ctx)
		}
	}
}

// RunOnce drains all sources, skipping if a previous run is still active.
func (r *Runner) RunOnce(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		log.Printf("ingest: skip, previous run still active")
		return
	}
	defer r.running.Store(false)

	started := time.Now()
	for _, source := range r.sources {
		payloads, err := source.Fetch(ctx)
		if err != nil {
			log.Printf("ingest: fetch: %v", err)
			continue
		}
		for _, payload := range payloads {
			if _, _, err := r.service.Ingest(ctx, payload); err != nil {
				log.Printf("ingest: %v", err)
			}
		}
	}
	log.Printf("ingest: done in %v", time.Since(started))
}
