package outbox

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/chdigius/activityhub/apclient"
	"github.com/chdigius/activityhub/store"
	"github.com/chdigius/activityhub/types"
)

var tracer = otel.Tracer("outbox")

// Destination is the federation-push delivery strategy: persist the outbox
// activity, then push the signed Create to every follower inbox. The write
// and the fanout form one retry unit; the persist is insert-or-ignore, so
// re-running after a partial fanout failure never duplicates the activity.
type Destination struct {
	store    *store.Store
	apclient *apclient.ApClient
	registry *types.ActorRegistry
}

func NewDestination(store *store.Store, apclient *apclient.ApClient, registry *types.ActorRegistry) *Destination {
	return &Destination{
		store:    store,
		apclient: apclient,
		registry: registry,
	}
}

func (d *Destination) Name() string {
	return types.DestFederation
}

// Deliver builds, persists and fans out the activity for one event.
func (d *Destination) Deliver(ctx context.Context, event types.Event) error {
	ctx, span := tracer.Start(ctx, "OutboxDeliver")
	defer span.End()

	actor, err := d.registry.ForScope(event.Scope)
	if err != nil {
		return err
	}

	activity := BuildCreateActivity(event, actor, time.Now())
	activityBytes, err := json.Marshal(activity)
	if err != nil {
		return errors.Wrap(err, "failed to marshal activity")
	}

	published, err := time.Parse(time.RFC3339, activity.Published)
	if err != nil {
		published = time.Now()
	}

	_, err = d.store.CreateOutboxActivity(ctx, types.OutboxActivity{
		ID:          activity.ID,
		ActorID:     actor.ID,
		EventID:     event.ID,
		Activity:    activityBytes,
		PublishedAt: published,
	})
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to persist outbox activity")
	}

	followers, err := d.store.GetFollowers(ctx, actor.ID)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to list followers")
	}

	for _, follower := range followers {
		if follower.Inbox == "" {
			log.Printf("outbox/%v follower %v has no inbox", actor.Username, follower.Follower)
			continue
		}
		err = d.apclient.PostToInbox(ctx, follower.Inbox, activity, actor)
		if err != nil {
			span.RecordError(err)
			return errors.Wrapf(err, "failed to push to %s", follower.Inbox)
		}
	}

	return nil
}
