// Package outbox materializes canonical events into ActivityPub Create
// activities and delivers them to the federation destination.
package outbox

import (
	"time"

	"github.com/gomarkdown/markdown"

	"github.com/chdigius/activityhub/types"
)

// BuildCreateActivity derives a Create activity wrapping a Note from an
// event and the actor publishing it. Activity and object ids are derived
// from (actor, event) alone, so rebuilding is idempotent and the ids stay
// dereferenceable.
func BuildCreateActivity(event types.Event, actor *types.Actor, now time.Time) types.ApObject {
	activityID := actor.ActivityURL(event.ID)
	objectID := actor.ObjectURL(event.ID)

	tags := []types.Tag{}
	for _, tag := range event.TagList() {
		if tag == "" {
			continue
		}
		tags = append(tags, types.Tag{Type: "Hashtag", Name: "#" + tag})
	}

	attachments := []types.Attachment{}
	for _, mediaURL := range event.MediaList() {
		attachments = append(attachments, types.Attachment{
			Type:      "Document",
			MediaType: "image/png",
			URL:       mediaURL,
		})
	}

	note := types.ApObject{
		ID:           objectID,
		Type:         "Note",
		AttributedTo: actor.ID,
		Published:    event.PublishedAt.UTC().Format(time.RFC3339),
		Content:      noteContent(event),
		URL:          objectID,
		OriginalURL:  event.URL,
		To:           []string{types.PublicCollection},
		CC:           []string{actor.Followers},
		Tag:          tags,
		Attachment:   attachments,
	}

	return types.ApObject{
		Context:   types.ActivityStreamsContext,
		ID:        activityID,
		Type:      "Create",
		Actor:     actor.ID,
		Published: now.UTC().Format(time.RFC3339),
		To:        []string{types.PublicCollection},
		CC:        []string{actor.Followers},
		Object:    note,
	}
}

// noteContent picks the richest content available: the event's own HTML,
// the summary rendered from markdown, or a paragraph wrapping the title.
func noteContent(event types.Event) string {
	if event.ContentHTML != "" {
		return event.ContentHTML
	}
	if event.Summary != "" {
		return string(markdown.ToHTML([]byte(event.Summary), nil, nil))
	}
	return "<p>" + event.Title + "</p>"
}
