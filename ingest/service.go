// Package ingest turns normalized event payloads into stored events and
// queued deliveries. Feed fetching and field normalization live behind the
// Source interface; this package owns identity, dedup and enqueue policy.
package ingest

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/chdigius/activityhub/canonical"
	"github.com/chdigius/activityhub/queue"
	"github.com/chdigius/activityhub/store"
	"github.com/chdigius/activityhub/types"
)

var tracer = otel.Tracer("ingest")

// Source produces normalized payloads from some upstream (an RSS feed, a
// webhook buffer). Parsing is the source's problem; the service only sees
// canonical payloads.
type Source interface {
	Fetch(ctx context.Context) ([]canonical.EventPayload, error)
}

// Service ingests payloads with first-seen-wins dedup on (scope, url).
type Service struct {
	store        *store.Store
	rdb          *redis.Client
	destinations []string
}

// NewService returns an ingestion service that enqueues one delivery per
// named destination for every genuinely new event.
func NewService(store *store.Store, rdb *redis.Client, destinations []string) *Service {
	return &Service{
		store:        store,
		rdb:          rdb,
		destinations: destinations,
	}
}

// Ingest stores a payload unless its (scope, url) was seen before. Only a
// first insert enqueues deliveries: re-ingests of already-known content
// never re-trigger federation. Returns the event id and whether a new event
// was created.
func (s *Service) Ingest(ctx context.Context, payload canonical.EventPayload) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "IngestPayload")
	defer span.End()

	if payload.URL == "" {
		return "", false, errors.New("payload has no url")
	}
	if payload.Scope == "" {
		return "", false, errors.New("payload has no scope")
	}
	if payload.Kind == "" {
		payload.Kind = "post"
	}
	if payload.Title == "" {
		payload.Title = "Update"
	}
	if payload.PublishedAt.IsZero() {
		payload.PublishedAt = time.Now()
	}

	mediaJSON, err := json.Marshal(orEmpty(payload.Media))
	if err != nil {
		return "", false, err
	}
	tagsJSON, err := json.Marshal(orEmpty(payload.Tags))
	if err != nil {
		return "", false, err
	}

	event := types.Event{
		ID:          ulid.Make().String(),
		Kind:        payload.Kind,
		Scope:       payload.Scope,
		Source:      payload.Source,
		Title:       payload.Title,
		Summary:     payload.Summary,
		ContentHTML: payload.ContentHTML,
		URL:         payload.URL,
		Media:       mediaJSON,
		Tags:        tagsJSON,
		PublishedAt: payload.PublishedAt,
		Fingerprint: canonical.Fingerprint(payload),
	}

	inserted, err := s.store.InsertEventIfNew(ctx, event)
	if err != nil {
		span.RecordError(err)
		return "", false, errors.Wrap(err, "failed to insert event")
	}
	if !inserted {
		existing, err := s.store.GetEventByScopeURL(ctx, payload.Scope, payload.URL)
		if err != nil {
			// dedup hit on fingerprint rather than (scope, url)
			return "", false, nil
		}
		return existing.ID, false, nil
	}

	for _, dest := range s.destinations {
		if err := s.store.EnqueueDelivery(ctx, event.ID, dest); err != nil {
			span.RecordError(err)
			log.Printf("ingest: enqueue %s→%s: %v", event.ID, dest, err)
		}
	}

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, queue.WakeChannel, event.ID).Err(); err != nil {
			log.Printf("ingest: wake publish: %v", err)
		}
	}

	return event.ID, true, nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
