package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chdigius/activityhub/types"
)

var tracer = otel.Tracer("store")

// Store is the repository for events, outbox activities, deliveries and
// followers. It is the single source of truth; every uniqueness invariant is
// enforced with insert-or-ignore statements, not check-then-insert.
type Store struct {
	db *gorm.DB
}

// NewStore returns a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InsertEventIfNew inserts an event unless a row with the same (scope, url)
// or fingerprint already exists. The check and insert are a single atomic
// statement, so concurrent ingest runs of the same item race safely.
// Returns whether the row was inserted.
func (s *Store) InsertEventIfNew(ctx context.Context, event types.Event) (bool, error) {
	ctx, span := tracer.Start(ctx, "StoreInsertEventIfNew")
	defer span.End()

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&event)
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetEventByID returns an event by ID.
func (s *Store) GetEventByID(ctx context.Context, id string) (types.Event, error) {
	ctx, span := tracer.Start(ctx, "StoreGetEventByID")
	defer span.End()

	var event types.Event
	result := s.db.WithContext(ctx).Where("id = ?", id).First(&event)
	return event, result.Error
}

// GetEventByScopeURL returns an event by its primary dedup key.
func (s *Store) GetEventByScopeURL(ctx context.Context, scope, url string) (types.Event, error) {
	ctx, span := tracer.Start(ctx, "StoreGetEventByScopeURL")
	defer span.End()

	var event types.Event
	result := s.db.WithContext(ctx).Where("scope = ? AND url = ?", scope, url).First(&event)
	return event, result.Error
}

// CreateOutboxActivity persists a built activity, keyed by its deterministic
// id. Rebuilding for the same (actor, event) is a no-op. Returns whether the
// row was inserted.
func (s *Store) CreateOutboxActivity(ctx context.Context, activity types.OutboxActivity) (bool, error) {
	ctx, span := tracer.Start(ctx, "StoreCreateOutboxActivity")
	defer span.End()

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&activity)
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetOutboxActivity returns a persisted activity by id, scoped to an actor.
func (s *Store) GetOutboxActivity(ctx context.Context, id, actorID string) (types.OutboxActivity, error) {
	ctx, span := tracer.Start(ctx, "StoreGetOutboxActivity")
	defer span.End()

	var activity types.OutboxActivity
	result := s.db.WithContext(ctx).Where("id = ? AND actor_id = ?", id, actorID).First(&activity)
	return activity, result.Error
}

// ListOutboxByActor returns an actor's most recent activities, newest first.
func (s *Store) ListOutboxByActor(ctx context.Context, actorID string, limit int) ([]types.OutboxActivity, error) {
	ctx, span := tracer.Start(ctx, "StoreListOutboxByActor")
	defer span.End()

	var activities []types.OutboxActivity
	err := s.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("published_at DESC").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}

// EnqueueDelivery creates a pending delivery row for (event, destination),
// eligible immediately. Enqueueing the same pair twice is a no-op.
func (s *Store) EnqueueDelivery(ctx context.Context, eventID, dest string) error {
	ctx, span := tracer.Start(ctx, "StoreEnqueueDelivery")
	defer span.End()

	delivery := types.Delivery{
		EventID:     eventID,
		Dest:        dest,
		Status:      types.DeliveryPending,
		Attempts:    0,
		NextRetryAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&delivery).Error
}

// GetDueDeliveries claims a bounded batch of pending, due rows, oldest-due
// first. Terminal rows are never returned, even after their retry time.
func (s *Store) GetDueDeliveries(ctx context.Context, now time.Time, limit int) ([]types.Delivery, error) {
	ctx, span := tracer.Start(ctx, "StoreGetDueDeliveries")
	defer span.End()

	var deliveries []types.Delivery
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", types.DeliveryPending, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}

// MarkDeliveryOK transitions a delivery to its terminal success state.
func (s *Store) MarkDeliveryOK(ctx context.Context, id uint) error {
	ctx, span := tracer.Start(ctx, "StoreMarkDeliveryOK")
	defer span.End()

	return s.db.WithContext(ctx).
		Model(&types.Delivery{}).
		Where("id = ?", id).
		Update("status", types.DeliveryOK).Error
}

// RecordDeliveryFailure stores the outcome of a failed attempt: bumped
// attempt count, recomputed retry time and the structured last error.
// When terminal, the row leaves the pending pool for good.
func (s *Store) RecordDeliveryFailure(ctx context.Context, id uint, attempts int, nextRetry time.Time, lastError datatypes.JSON, terminal bool) error {
	ctx, span := tracer.Start(ctx, "StoreRecordDeliveryFailure")
	defer span.End()

	status := types.DeliveryPending
	if terminal {
		status = types.DeliveryFailed
	}
	return s.db.WithContext(ctx).
		Model(&types.Delivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":      attempts,
			"next_retry_at": nextRetry,
			"last_error":    lastError,
			"status":        status,
		}).Error
}

// ListDeliveries returns recent delivery rows, optionally filtered by status.
func (s *Store) ListDeliveries(ctx context.Context, status string, limit int) ([]types.Delivery, error) {
	ctx, span := tracer.Start(ctx, "StoreListDeliveries")
	defer span.End()

	query := s.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var deliveries []types.Delivery
	err := query.Find(&deliveries).Error
	return deliveries, err
}

// SaveFollower records a completed Follow handshake. Replays are no-ops.
func (s *Store) SaveFollower(ctx context.Context, follower types.Follower) error {
	ctx, span := tracer.Start(ctx, "StoreSaveFollower")
	defer span.End()

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&follower).Error
}

// SetFollowerInbox records the inbox discovered for a follower during the
// handshake.
func (s *Store) SetFollowerInbox(ctx context.Context, actorID, follower, inbox string) error {
	ctx, span := tracer.Start(ctx, "StoreSetFollowerInbox")
	defer span.End()

	return s.db.WithContext(ctx).
		Model(&types.Follower{}).
		Where("actor_id = ? AND follower = ?", actorID, follower).
		Update("inbox", inbox).Error
}

// GetFollowers returns the followers of a local actor.
func (s *Store) GetFollowers(ctx context.Context, actorID string) ([]types.Follower, error) {
	ctx, span := tracer.Start(ctx, "StoreGetFollowers")
	defer span.End()

	var followers []types.Follower
	err := s.db.WithContext(ctx).Where("actor_id = ?", actorID).Find(&followers).Error
	return followers, err
}

// Stats are coarse row counts for the ops surface.
type Stats struct {
	Events     int64 `json:"events"`
	Deliveries int64 `json:"deliveries"`
	Pending    int64 `json:"pending"`
	Failed     int64 `json:"failed"`
	Followers  int64 `json:"followers"`
}

func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	ctx, span := tracer.Start(ctx, "StoreGetStats")
	defer span.End()

	var stats Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&types.Event{}).Count(&stats.Events).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&types.Delivery{}).Count(&stats.Deliveries).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&types.Delivery{}).Where("status = ?", types.DeliveryPending).Count(&stats.Pending).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&types.Delivery{}).Where("status = ?", types.DeliveryFailed).Count(&stats.Failed).Error; err != nil {
		return stats, err
	}
	err := db.Model(&types.Follower{}).Count(&stats.Followers).Error
	return stats, err
}
