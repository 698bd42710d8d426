package types

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Delivery statuses.
const (
	DeliveryPending = "pending"
	DeliveryOK      = "ok"
	DeliveryFailed  = "failed"
)

// Destination names.
const (
	DestFederation = "federation"
	DestThirdParty = "thirdparty"
)

// Event is a db model of a canonical content event. Rows are immutable:
// created by ingestion, never updated, never deleted.
type Event struct {
	ID          string         `json:"id" gorm:"primaryKey;type:text"`
	Kind        string         `json:"kind" gorm:"type:text"`
	Scope       string         `json:"scope" gorm:"type:text;uniqueIndex:uniq_event_scope_url"`
	Source      string         `json:"source" gorm:"type:text"`
	Title       string         `json:"title" gorm:"type:text"`
	Summary     string         `json:"summary" gorm:"type:text"`
	ContentHTML string         `json:"content_html" gorm:"type:text"`
	URL         string         `json:"url" gorm:"type:text;uniqueIndex:uniq_event_scope_url"`
	Media       datatypes.JSON `json:"media" gorm:"column:media_json"`
	Tags        datatypes.JSON `json:"tags" gorm:"column:tags_json"`
	PublishedAt time.Time      `json:"published_at" gorm:"index"`
	Fingerprint string         `json:"fingerprint" gorm:"type:text;uniqueIndex"`
}

// TagList decodes the tags column. A corrupt column reads as no tags.
func (e Event) TagList() []string {
	var tags []string
	json.Unmarshal(e.Tags, &tags)
	return tags
}

// MediaList decodes the media column.
func (e Event) MediaList() []string {
	var media []string
	json.Unmarshal(e.Media, &media)
	return media
}

// OutboxActivity is a db model of a materialized federation activity.
// The ID is derived from (actor, event), so the primary key doubles as the
// at-most-one-per-pair invariant.
type OutboxActivity struct {
	ID          string         `json:"id" gorm:"primaryKey;type:text"`
	ActorID     string         `json:"actor_id" gorm:"type:text;index"`
	EventID     string         `json:"event_id" gorm:"type:text;index"`
	Activity    datatypes.JSON `json:"activity" gorm:"column:activity_json"`
	PublishedAt time.Time      `json:"published_at" gorm:"index"`
}

// Delivery is a db model of one (event, destination) work item.
type Delivery struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	EventID     string         `json:"event_id" gorm:"type:text;uniqueIndex:uniq_delivery"`
	Dest        string         `json:"dest" gorm:"type:text;uniqueIndex:uniq_delivery"`
	Status      string         `json:"status" gorm:"type:text;default:pending;index"`
	Attempts    int            `json:"attempts"`
	NextRetryAt time.Time      `json:"next_retry_at" gorm:"index"`
	LastError   datatypes.JSON `json:"last_error"`
}

// Follower is a db model of a remote actor subscribed to a local actor's
// outbox. Inbox is the inbox discovered during the Follow handshake.
type Follower struct {
	ActorID  string `json:"actor_id" gorm:"primaryKey;type:text"`
	Follower string `json:"follower" gorm:"primaryKey;type:text"`
	Inbox    string `json:"inbox" gorm:"type:text"`
}
