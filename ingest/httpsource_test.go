package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`[
			{"scope":"blog","url":"https://blog.example.com/a","title":"A"},
			{"scope":"blog","url":"https://blog.example.com/b","title":"B"}
		]`))
	}))
	defer server.Close()

	payloads, err := NewHTTPSource(server.URL).Fetch(context.Background())
	assert.NoError(t, err)
	if assert.Len(t, payloads, 2) {
		assert.Equal(t, "https://blog.example.com/a", payloads[0].URL)
		assert.Equal(t, "B", payloads[1].Title)
	}
}

func TestHTTPSourceFetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPSource(server.URL).Fetch(context.Background())
	assert.Error(t, err)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer bad.Close()

	_, err = NewHTTPSource(bad.URL).Fetch(context.Background())
	assert.Error(t, err)
}
