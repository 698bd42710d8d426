package api

import (
	"context"

	"github.com/chdigius/activityhub/canonical"
	"github.com/chdigius/activityhub/ingest"
	"github.com/chdigius/activityhub/store"
	"github.com/chdigius/activityhub/types"
)

// Service is the thin local management surface over ingest and the store.
type Service struct {
	store  *store.Store
	ingest *ingest.Service
}

func NewService(store *store.Store, ingest *ingest.Service) *Service {
	return &Service{
		store:  store,
		ingest: ingest,
	}
}

// IngestResult tells the caller whether the event was new.
type IngestResult struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

func (s *Service) IngestEvent(ctx context.Context, payload canonical.EventPayload) (IngestResult, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.IngestEvent")
	defer span.End()

	id, created, err := s.ingest.Ingest(ctx, payload)
	if err != nil {
		span.RecordError(err)
		return IngestResult{}, err
	}
	return IngestResult{ID: id, Created: created}, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (types.Event, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.GetEvent")
	defer span.End()

	return s.store.GetEventByID(ctx, id)
}

func (s *Service) ListDeliveries(ctx context.Context, status string, limit int) ([]types.Delivery, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.ListDeliveries")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListDeliveries(ctx, status, limit)
}

func (s *Service) GetStats(ctx context.Context) (store.Stats, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.GetStats")
	defer span.End()

	return s.store.GetStats(ctx)
}
