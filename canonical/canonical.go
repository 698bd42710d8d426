// Package canonical turns raw ingested items into a stable identity: a
// canonical serialization with fixed key order and defaults, and a SHA-256
// fingerprint over it. The fingerprint detects semantically-identical
// re-ingests even when upstream ordering or whitespace differs; the primary
// dedup key stays (scope, url).
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// EventPayload is a normalized event as produced by ingestion.
type EventPayload struct {
	Kind        string    `json:"kind"`
	Scope       string    `json:"scope"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	ContentHTML string    `json:"content_html"`
	URL         string    `json:"url"`
	Media       []string  `json:"media"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
}

// stablePayload pins the serialized key order. The published timestamp is
// deliberately excluded: it varies between fetches of the same item.
type stablePayload struct {
	Kind        string   `json:"kind"`
	Scope       string   `json:"scope"`
	Source      string   `json:"source"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	ContentHTML string   `json:"content_html"`
	URL         string   `json:"url"`
	Media       []string `json:"media"`
	Tags        []string `json:"tags"`
}

// Canonicalize serializes a payload with fixed key order and defaults for
// absent optional fields.
func Canonicalize(p EventPayload) []byte {
	stable := stablePayload{
		Kind:        p.Kind,
		Scope:       p.Scope,
		Source:      p.Source,
		Title:       p.Title,
		Summary:     p.Summary,
		ContentHTML: p.ContentHTML,
		URL:         p.URL,
		Media:       p.Media,
		Tags:        p.Tags,
	}
	if stable.Media == nil {
		stable.Media = []string{}
	}
	if stable.Tags == nil {
		stable.Tags = []string{}
	}
	out, _ := json.Marshal(stable)
	return out
}

// Fingerprint returns the hex SHA-256 digest of the canonical serialization.
func Fingerprint(p EventPayload) string {
	sum := sha256.Sum256(Canonicalize(p))
	return hex.EncodeToString(sum[:])
}
