package apclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/chdigius/activityhub/signing"
	"github.com/chdigius/activityhub/types"
)

var (
	UserAgent = "ActivityHub/1.0 (+https://github.com/chdigius/activityhub)"
)

var tracer = otel.Tracer("apclient")

const actorCacheSeconds = 1800 // 30 minutes

// ApClient talks to remote ActivityPub servers. One outbound call blocks for
// at most one HTTP round trip; the client timeout bounds scheduler latency.
type ApClient struct {
	mc   *memcache.Client
	http *http.Client
}

func NewApClient(mc *memcache.Client) *ApClient {
	return &ApClient{
		mc:   mc,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchActor fetches a remote actor document, optionally signing the request
// as a local actor. Documents are cached for 30 minutes.
func (c *ApClient) FetchActor(ctx context.Context, actorURL string, signAs *types.Actor) (*types.RawApObj, error) {
	ctx, span := tracer.Start(ctx, "FetchActor")
	defer span.End()

	if c.mc != nil {
		cache, err := c.mc.Get(actorURL)
		if err == nil {
			actor, err := types.LoadAsRawApObj(cache.Value)
			if err == nil {
				return actor, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, actorURL, nil)
	if err != nil {
		return nil, err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Host", req.URL.Host)

	if signAs != nil {
		headers, err := signing.SignGet(actorURL, signAs)
		if err != nil {
			log.Println(err)
			return nil, err
		}
		for k, values := range headers {
			for _, v := range values {
				req.Header.Set(k, v)
			}
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("error fetching actor %s: %d", actorURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	actor, err := types.LoadAsRawApObj(body)
	if err != nil {
		return nil, err
	}

	if c.mc != nil {
		actorBytes, err := json.Marshal(actor.GetData())
		if err == nil {
			c.mc.Set(&memcache.Item{
				Key:        actorURL,
				Value:      actorBytes,
				Expiration: actorCacheSeconds,
			})
		}
	}

	return actor, nil
}

// PostToInbox signs and posts an activity document to a remote inbox.
func (c *ApClient) PostToInbox(ctx context.Context, inbox string, document any, actor *types.Actor) error {
	ctx, span := tracer.Start(ctx, "PostToInbox")
	defer span.End()

	documentBytes, err := json.Marshal(document)
	if err != nil {
		return err
	}

	headers, err := signing.Sign(inbox, documentBytes, actor)
	if err != nil {
		return errors.Wrap(err, "failed to sign inbox post")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inbox, bytes.NewReader(documentBytes))
	if err != nil {
		return err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set("User-Agent", UserAgent)
	for k, values := range headers {
		for _, v := range values {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Println(err)
	}
	log.Printf("apclient POST %s [%d]: %s", inbox, resp.StatusCode, string(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("error posting to inbox: %d", resp.StatusCode)
	}

	return nil
}
