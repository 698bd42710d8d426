package queue

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/chdigius/activityhub/store"
	"github.com/chdigius/activityhub/types"
)

type fakeDestination struct {
	name      string
	err       error
	delivered []string
}

func (d *fakeDestination) Name() string { return d.name }

func (d *fakeDestination) Deliver(ctx context.Context, event types.Event) error {
	if d.err != nil {
		return d.err
	}
	d.delivered = append(d.delivered, event.ID)
	return nil
}

func setupScheduler(t *testing.T, destinations ...Destination) (*Scheduler, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Event{}, &types.Delivery{}))
	s := store.NewStore(db)
	return NewScheduler(s, nil, destinations...), s
}

func seedEvent(t *testing.T, s *store.Store, id string) {
	t.Helper()
	inserted, err := s.InsertEventIfNew(context.Background(), types.Event{
		ID:          id,
		Kind:        "post",
		Scope:       "blog",
		URL:         "https://x/" + id,
		Fingerprint: "fp-" + id,
		PublishedAt: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, inserted)
}

func soleDelivery(t *testing.T, s *store.Store) types.Delivery {
	t.Helper()
	rows, err := s.ListDeliveries(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestRunOnceMarksSuccess(t *testing.T) {
	dest := &fakeDestination{name: types.DestFederation}
	sched, s := setupScheduler(t, dest)
	ctx := context.Background()

	seedEvent(t, s, "ev1")
	require.NoError(t, s.EnqueueDelivery(ctx, "ev1", types.DestFederation))

	sched.RunOnce(ctx)

	assert.Equal(t, []string{"ev1"}, dest.delivered)
	row := soleDelivery(t, s)
	assert.Equal(t, types.DeliveryOK, row.Status)
	assert.Equal(t, 0, row.Attempts)
}

func TestRunOnceRecordsFailureWithBackoff(t *testing.T) {
	dest := &fakeDestination{name: types.DestThirdParty, err: errors.New("connection refused")}
	sched, s := setupScheduler(t, dest)
	ctx := context.Background()

	seedEvent(t, s, "ev1")
	require.NoError(t, s.EnqueueDelivery(ctx, "ev1", types.DestThirdParty))

	before := time.Now()
	sched.RunOnce(ctx)

	row := soleDelivery(t, s)
	assert.Equal(t, types.DeliveryPending, row.Status)
	assert.Equal(t, 1, row.Attempts)
	assert.Contains(t, string(row.LastError), "connection refused")

	// first failure waits one minute
	wait := row.NextRetryAt.Sub(before)
	assert.Greater(t, wait, 50*time.Second)
	assert.Less(t, wait, 70*time.Second)
}

func TestDeliveryTerminalAfterCeiling(t *testing.T) {
	dest := &fakeDestination{name: types.DestThirdParty, err: errors.New("boom")}
	sched, s := setupScheduler(t, dest)
	ctx := context.Background()

	seedEvent(t, s, "ev1")
	require.NoError(t, s.EnqueueDelivery(ctx, "ev1", types.DestThirdParty))

	for i := 0; i < MaxAttempts; i++ {
		row := soleDelivery(t, s)
		// force the row due again regardless of backoff
		require.NoError(t, s.RecordDeliveryFailure(ctx, row.ID, row.Attempts, time.Now().Add(-time.Second), row.LastError, false))
		sched.RunOnce(ctx)
	}

	row := soleDelivery(t, s)
	assert.Equal(t, types.DeliveryFailed, row.Status)
	assert.Equal(t, MaxAttempts, row.Attempts)

	// terminal rows are never claimed again, even when due
	dest.err = nil
	sched.RunOnce(ctx)
	assert.Empty(t, dest.delivered)
	row = soleDelivery(t, s)
	assert.Equal(t, types.DeliveryFailed, row.Status)
}

func TestUnknownDestinationIsHardFailure(t *testing.T) {
	sched, s := setupScheduler(t)
	ctx := context.Background()

	seedEvent(t, s, "ev1")
	require.NoError(t, s.EnqueueDelivery(ctx, "ev1", "telegraph"))

	sched.RunOnce(ctx)

	row := soleDelivery(t, s)
	assert.Equal(t, 1, row.Attempts)
	assert.Contains(t, string(row.LastError), "unknown dest")
}

func TestMissingEventIsHardFailure(t *testing.T) {
	dest := &fakeDestination{name: types.DestFederation}
	sched, s := setupScheduler(t, dest)
	ctx := context.Background()

	require.NoError(t, s.EnqueueDelivery(ctx, "ghost", types.DestFederation))
	sched.RunOnce(ctx)

	row := soleDelivery(t, s)
	assert.Equal(t, 1, row.Attempts)
	assert.Empty(t, dest.delivered)
}

func TestRunOnceHonorsBatchLimitAndOrder(t *testing.T) {
	dest := &fakeDestination{name: types.DestFederation}
	sched, s := setupScheduler(t, dest)
	sched.batchSize = 2
	ctx := context.Background()

	now := time.Now()
	for i, id := range []string{"ev1", "ev2", "ev3"} {
		seedEvent(t, s, id)
		require.NoError(t, s.EnqueueDelivery(ctx, id, types.DestFederation))
		rows, err := s.ListDeliveries(ctx, "", 10)
		require.NoError(t, err)
		for _, row := range rows {
			if row.EventID == id {
				// ev3 longest-waiting
				require.NoError(t, s.RecordDeliveryFailure(ctx, row.ID, 0, now.Add(-time.Duration(i+1)*time.Hour), nil, false))
			}
		}
	}

	sched.RunOnce(ctx)
	assert.Equal(t, []string{"ev3", "ev2"}, dest.delivered)
}
