package types

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"

	"github.com/pkg/errors"
)

// Actor is a local federated identity. Actors are derived from config at
// startup and never persisted; the private key stays server-side.
type Actor struct {
	Username     string
	Name         string
	ID           string
	Inbox        string
	Outbox       string
	Followers    string
	PublicKeyPem string
	PrivateKey   *rsa.PrivateKey
}

// NewActor derives the actor's public URLs from the base identity URL.
func NewActor(base, username, name, publicKeyPem string, priv *rsa.PrivateKey) *Actor {
	if name == "" {
		name = username
	}
	id := base + "/actors/" + username
	return &Actor{
		Username:     username,
		Name:         name,
		ID:           id,
		Inbox:        base + "/inbox",
		Outbox:       id + "/outbox",
		Followers:    id + "/followers",
		PublicKeyPem: publicKeyPem,
		PrivateKey:   priv,
	}
}

func (a *Actor) KeyID() string {
	return a.ID + "#main-key"
}

// ActivityURL is the deterministic id of the activity derived from an event.
func (a *Actor) ActivityURL(eventID string) string {
	return strings.Replace(a.ID, "/actors/", "/activities/", 1) + "/" + eventID
}

// ObjectURL is the deterministic id of the object derived from an event.
func (a *Actor) ObjectURL(eventID string) string {
	return strings.Replace(a.ID, "/actors/", "/objects/", 1) + "/" + eventID
}

// ActorRegistry holds every local actor plus the scope routing table. It is
// built once at startup and passed by reference; there is no ambient global.
type ActorRegistry struct {
	base        string
	byName      map[string]*Actor
	byID        map[string]*Actor
	scopeActor  map[string]string
	defaultName string
	order       []string
}

func NewActorRegistry(base string, scopeActor map[string]string, defaultName string) *ActorRegistry {
	return &ActorRegistry{
		base:        base,
		byName:      make(map[string]*Actor),
		byID:        make(map[string]*Actor),
		scopeActor:  scopeActor,
		defaultName: defaultName,
	}
}

func (r *ActorRegistry) BaseURL() string {
	return r.base
}

func (r *ActorRegistry) Add(actor *Actor) {
	if _, ok := r.byName[actor.Username]; !ok {
		r.order = append(r.order, actor.Username)
	}
	r.byName[actor.Username] = actor
	r.byID[actor.ID] = actor
	if r.defaultName == "" {
		r.defaultName = actor.Username
	}
}

func (r *ActorRegistry) ByName(username string) (*Actor, bool) {
	actor, ok := r.byName[username]
	return actor, ok
}

func (r *ActorRegistry) ByID(id string) (*Actor, bool) {
	actor, ok := r.byID[id]
	return actor, ok
}

// ForScope resolves the actor mapped to a content scope, falling back to the
// default actor for unmapped scopes.
func (r *ActorRegistry) ForScope(scope string) (*Actor, error) {
	username, ok := r.scopeActor[scope]
	if !ok {
		username = r.defaultName
	}
	actor, ok := r.byName[username]
	if !ok {
		return nil, errors.Errorf("no actor for scope %s", scope)
	}
	return actor, nil
}

// All returns actors in registration order.
func (r *ActorRegistry) All() []*Actor {
	actors := make([]*Actor, 0, len(r.order))
	for _, username := range r.order {
		actors = append(actors, r.byName[username])
	}
	return actors
}

// ParsePrivateKey decodes a PKCS#1 or PKCS#8 PEM-encoded RSA private key.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing the key")
	}

	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return priv, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse DER encoded private key")
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return priv, nil
}
