package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeKeyOrderAndDefaults(t *testing.T) {
	p := EventPayload{
		Kind:   "post",
		Scope:  "blog",
		Source: "example.org",
		URL:    "https://example.org/1",
	}

	got := string(Canonicalize(p))
	want := `{"kind":"post","scope":"blog","source":"example.org","title":"","summary":"","content_html":"","url":"https://example.org/1","media":[],"tags":[]}`
	assert.Equal(t, want, got)
}

func TestFingerprintIgnoresVariableFields(t *testing.T) {
	a := EventPayload{
		Kind:        "post",
		Scope:       "blog",
		Source:      "example.org",
		Title:       "hello",
		URL:         "https://example.org/1",
		PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	b := a
	b.PublishedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.Media = []string{}
	b.Tags = []string{}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := EventPayload{Kind: "post", Scope: "blog", Title: "hello", URL: "https://example.org/1"}
	b := a
	b.Title = "hello!"

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)
}
