package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/chdigius/activityhub/canonical"
)

// HTTPSource pulls batches of already-normalized payloads from an upstream
// endpoint. The endpoint owns feed parsing; this side only decodes the
// canonical JSON array it serves.
type HTTPSource struct {
	url  string
	http *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url:  url,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]canonical.EventPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch source %s", s.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("source %s returned %d", s.url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payloads []canonical.EventPayload
	if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, errors.Wrapf(err, "source %s returned invalid json", s.url)
	}
	return payloads, nil
}
