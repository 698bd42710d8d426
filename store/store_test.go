package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/chdigius/activityhub/types"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.Event{},
		&types.OutboxActivity{},
		&types.Delivery{},
		&types.Follower{},
	))
	return NewStore(db)
}

func testEvent(id, scope, url string) types.Event {
	return types.Event{
		ID:          id,
		Kind:        "post",
		Scope:       scope,
		Source:      "example.org",
		Title:       "hello",
		URL:         url,
		PublishedAt: time.Now(),
		Fingerprint: "fp-" + id,
	}
}

func TestInsertEventIfNewDedup(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	inserted, err := s.InsertEventIfNew(ctx, testEvent("ev1", "blog", "https://x/1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// same (scope, url), different id: must be a no-op
	dup := testEvent("ev2", "blog", "https://x/1")
	dup.Fingerprint = "fp-other"
	inserted, err = s.InsertEventIfNew(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.GetEventByScopeURL(ctx, "blog", "https://x/1")
	require.NoError(t, err)
	assert.Equal(t, "ev1", got.ID)
}

func TestInsertEventIfNewFingerprintDedup(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	inserted, err := s.InsertEventIfNew(ctx, testEvent("ev1", "blog", "https://x/1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// same fingerprint under a different url
	dup := testEvent("ev2", "blog", "https://x/2")
	dup.Fingerprint = "fp-ev1"
	inserted, err = s.InsertEventIfNew(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestEnqueueDeliveryIdempotent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.EnqueueDelivery(ctx, "ev1", types.DestFederation))
	require.NoError(t, s.EnqueueDelivery(ctx, "ev1", types.DestFederation))
	require.NoError(t, s.EnqueueDelivery(ctx, "ev1", types.DestThirdParty))

	rows, err := s.ListDeliveries(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGetDueDeliveriesOrderingAndLimit(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	for i, eventID := range []string{"ev1", "ev2", "ev3"} {
		require.NoError(t, s.EnqueueDelivery(ctx, eventID, types.DestFederation))
		// stagger retry times: ev3 oldest-due, ev1 newest
		require.NoError(t, s.db.Model(&types.Delivery{}).
			Where("event_id = ?", eventID).
			Update("next_retry_at", now.Add(-time.Duration(i+1)*time.Minute)).Error)
	}

	due, err := s.GetDueDeliveries(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "ev3", due[0].EventID)
	assert.Equal(t, "ev2", due[1].EventID)
}

func TestTerminalDeliveriesNeverClaimed(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.EnqueueDelivery(ctx, "ev1", types.DestFederation))
	require.NoError(t, s.EnqueueDelivery(ctx, "ev2", types.DestFederation))

	rows, err := s.ListDeliveries(ctx, "", 10)
	require.NoError(t, err)
	for _, row := range rows {
		switch row.EventID {
		case "ev1":
			require.NoError(t, s.MarkDeliveryOK(ctx, row.ID))
		case "ev2":
			require.NoError(t, s.RecordDeliveryFailure(ctx, row.ID, 5, now.Add(-time.Hour), nil, true))
		}
	}

	due, err := s.GetDueDeliveries(ctx, now.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRecordDeliveryFailureKeepsPendingBeforeCeiling(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.EnqueueDelivery(ctx, "ev1", types.DestThirdParty))
	rows, err := s.ListDeliveries(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	next := time.Now().Add(time.Minute)
	require.NoError(t, s.RecordDeliveryFailure(ctx, rows[0].ID, 1, next, []byte(`{"error":"boom"}`), false))

	rows, err = s.ListDeliveries(ctx, types.DeliveryPending, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Attempts)
	assert.JSONEq(t, `{"error":"boom"}`, string(rows[0].LastError))
}

func TestCreateOutboxActivityIdempotent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	activity := types.OutboxActivity{
		ID:          "https://hub.example/activities/alice/ev1",
		ActorID:     "https://hub.example/actors/alice",
		EventID:     "ev1",
		Activity:    []byte(`{"type":"Create"}`),
		PublishedAt: time.Now(),
	}

	inserted, err := s.CreateOutboxActivity(ctx, activity)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.CreateOutboxActivity(ctx, activity)
	require.NoError(t, err)
	assert.False(t, inserted)

	list, err := s.ListOutboxByActor(ctx, activity.ActorID, 50)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSaveFollowerIdempotent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	follower := types.Follower{
		ActorID:  "https://hub.example/actors/alice",
		Follower: "https://remote.example/users/bob",
		Inbox:    "https://remote.example/users/bob/inbox",
	}
	require.NoError(t, s.SaveFollower(ctx, follower))
	require.NoError(t, s.SaveFollower(ctx, follower))

	followers, err := s.GetFollowers(ctx, follower.ActorID)
	require.NoError(t, err)
	assert.Len(t, followers, 1)
}
