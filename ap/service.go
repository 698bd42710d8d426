package ap

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/chdigius/activityhub/apclient"
	"github.com/chdigius/activityhub/store"
	"github.com/chdigius/activityhub/types"
)

const outboxPageSize = 50

// Service implements the federation read surface and the inbox side effects.
type Service struct {
	store    *store.Store
	apclient *apclient.ApClient
	registry *types.ActorRegistry
	info     types.NodeInfo
	host     string
}

func NewService(
	store *store.Store,
	apclient *apclient.ApClient,
	registry *types.ActorRegistry,
	info types.NodeInfo,
) *Service {
	host := ""
	if u, err := url.Parse(registry.BaseURL()); err == nil {
		host = u.Host
	}
	return &Service{
		store:    store,
		apclient: apclient,
		registry: registry,
		info:     info,
		host:     host,
	}
}

// WebFinger resolves acct:{user}@{host} to the actor document URL.
func (s *Service) WebFinger(ctx context.Context, resource string) (types.WebFinger, error) {
	_, span := tracer.Start(ctx, "Ap.Service.WebFinger")
	defer span.End()

	rt, id, ok := strings.Cut(resource, ":")
	if !ok || rt != "acct" {
		return types.WebFinger{}, errors.New("invalid resource")
	}

	username, domain, ok := strings.Cut(id, "@")
	if !ok {
		return types.WebFinger{}, errors.New("invalid resource")
	}
	if domain != s.host {
		return types.WebFinger{}, errors.New("domain not found")
	}

	actor, ok := s.registry.ByName(username)
	if !ok {
		return types.WebFinger{}, errors.New("actor not found")
	}

	return types.WebFinger{
		Subject: "acct:" + actor.Username + "@" + s.host,
		Aliases: []string{actor.ID},
		Links: []types.WebFingerLink{
			{
				Rel:  "self",
				Type: "application/activity+json",
				Href: actor.ID,
			},
		},
	}, nil
}

func (s *Service) NodeInfo(ctx context.Context) (types.NodeInfo, error) {
	_, span := tracer.Start(ctx, "Ap.Service.NodeInfo")
	defer span.End()
	return s.info, nil
}

func (s *Service) NodeInfoWellKnown(ctx context.Context) (types.WellKnown, error) {
	_, span := tracer.Start(ctx, "Ap.Service.NodeInfoWellKnown")
	defer span.End()
	return types.WellKnown{
		Links: []types.WellKnownLink{
			{
				Rel:  "http://nodeinfo.diaspora.software/ns/schema/2.0",
				Href: s.registry.BaseURL() + "/nodeinfo/2.0",
			},
		},
	}, nil
}

// Actor returns the public actor document, public key included.
func (s *Service) Actor(ctx context.Context, name string) (types.ApObject, error) {
	_, span := tracer.Start(ctx, "Ap.Service.Actor")
	defer span.End()

	actor, ok := s.registry.ByName(name)
	if !ok {
		return types.ApObject{}, errors.New("actor not found")
	}

	return types.ApObject{
		Context:           []string{types.ActivityStreamsContext, types.SecurityContext},
		ID:                actor.ID,
		Type:              "Service",
		Name:              actor.Name,
		PreferredUsername: actor.Username,
		Inbox:             actor.Inbox,
		Outbox:            actor.Outbox,
		Followers:         actor.Followers,
		Endpoints: &types.PersonEndpoints{
			SharedInbox: actor.Inbox,
		},
		URL: actor.ID,
		PublicKey: &types.Key{
			ID:           actor.KeyID(),
			Type:         "Key",
			Owner:        actor.ID,
			PublicKeyPem: actor.PublicKeyPem,
		},
	}, nil
}

// Outbox returns the actor's most recent activities, newest first.
func (s *Service) Outbox(ctx context.Context, name string) (types.OrderedCollection, error) {
	ctx, span := tracer.Start(ctx, "Ap.Service.Outbox")
	defer span.End()

	actor, ok := s.registry.ByName(name)
	if !ok {
		return types.OrderedCollection{}, errors.New("actor not found")
	}

	activities, err := s.store.ListOutboxByActor(ctx, actor.ID, outboxPageSize)
	if err != nil {
		span.RecordError(err)
		return types.OrderedCollection{}, err
	}

	items := make([]json.RawMessage, 0, len(activities))
	for _, activity := range activities {
		items = append(items, json.RawMessage(activity.Activity))
	}

	return types.OrderedCollection{
		Context:      types.ActivityStreamsContext,
		ID:           actor.Outbox,
		Type:         "OrderedCollection",
		TotalItems:   len(items),
		OrderedItems: items,
	}, nil
}

// Activity dereferences a persisted activity by its derived id.
func (s *Service) Activity(ctx context.Context, name, eventID string) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Ap.Service.Activity")
	defer span.End()

	actor, ok := s.registry.ByName(name)
	if !ok {
		return nil, errors.New("actor not found")
	}

	activity, err := s.store.GetOutboxActivity(ctx, actor.ActivityURL(eventID), actor.ID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.New("activity not found")
	}
	return json.RawMessage(activity.Activity), nil
}

// Object dereferences the Note embedded in a persisted activity, ensuring
// it carries an @context of its own.
func (s *Service) Object(ctx context.Context, name, eventID string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "Ap.Service.Object")
	defer span.End()

	actor, ok := s.registry.ByName(name)
	if !ok {
		return nil, errors.New("actor not found")
	}

	activity, err := s.store.GetOutboxActivity(ctx, actor.ActivityURL(eventID), actor.ID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.New("object not found")
	}

	raw, err := types.LoadAsRawApObj(activity.Activity)
	if err != nil {
		return nil, errors.New("object not found")
	}
	object, ok := raw.GetRaw("object")
	if !ok {
		return nil, errors.New("object not found")
	}

	data := object.GetData()
	if _, ok := data["@context"]; !ok {
		data["@context"] = types.ActivityStreamsContext
	}
	return data, nil
}

// Followers returns the actor's followers collection.
func (s *Service) Followers(ctx context.Context, name string) (types.OrderedCollection, error) {
	ctx, span := tracer.Start(ctx, "Ap.Service.Followers")
	defer span.End()

	actor, ok := s.registry.ByName(name)
	if !ok {
		return types.OrderedCollection{}, errors.New("actor not found")
	}

	followers, err := s.store.GetFollowers(ctx, actor.ID)
	if err != nil {
		span.RecordError(err)
		return types.OrderedCollection{}, err
	}

	items := make([]string, 0, len(followers))
	for _, follower := range followers {
		items = append(items, follower.Follower)
	}

	return types.OrderedCollection{
		Context:      types.ActivityStreamsContext,
		ID:           actor.Followers,
		Type:         "OrderedCollection",
		TotalItems:   len(items),
		OrderedItems: items,
	}, nil
}

// Inbox processes one received activity. Only Follow has side effects; the
// caller acknowledges receipt regardless of the outcome here, because the
// inbox contract promises "received", not "processed".
func (s *Service) Inbox(ctx context.Context, object *types.RawApObj) error {
	ctx, span := tracer.Start(ctx, "Ap.Service.Inbox")
	defer span.End()

	switch object.MustGetString("type") {
	case "Follow":
		return s.handleFollow(ctx, object)
	default:
		b, err := json.Marshal(object.GetData())
		if err == nil {
			log.Println("ap: unhandled activity", string(b))
		}
		return nil
	}
}

// handleFollow runs the Follow → Accept handshake: record the follower,
// discover their inbox and post back a signed Accept wrapping the original
// Follow.
func (s *Service) handleFollow(ctx context.Context, object *types.RawApObj) error {
	ctx, span := tracer.Start(ctx, "Ap.Service.HandleFollow")
	defer span.End()

	target, ok := object.GetString("object")
	if !ok {
		return errors.New("follow object is not an actor url")
	}
	actor, ok := s.registry.ByID(target)
	if !ok {
		log.Println("ap: follow for unknown object", target)
		return nil
	}

	follower := object.MustGetString("actor")
	if follower == "" {
		return errors.New("follow without actor")
	}

	err := s.store.SaveFollower(ctx, types.Follower{
		ActorID:  actor.ID,
		Follower: follower,
	})
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to save follower")
	}

	followerDoc, err := s.apclient.FetchActor(ctx, follower, actor)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to fetch follower actor doc")
	}

	inbox := followerDoc.MustGetString("endpoints.sharedInbox")
	if inbox == "" {
		inbox = followerDoc.MustGetString("inbox")
	}
	if inbox == "" {
		return errors.Errorf("follower %s has no inbox", follower)
	}

	if err := s.store.SetFollowerInbox(ctx, actor.ID, follower, inbox); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to record follower inbox")
	}

	accept := types.ApObject{
		Context: types.ActivityStreamsContext,
		ID:      strings.Replace(actor.ID, "/actors/", "/activities/", 1) + "/accept-" + uuid.NewString(),
		Type:    "Accept",
		Actor:   actor.ID,
		Object:  object.GetData(),
	}

	err = s.apclient.PostToInbox(ctx, inbox, accept, actor)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to post accept")
	}

	return nil
}
