// Package signing produces HTTP Message Signatures for outgoing federation
// requests. The signing string covers (request-target), host, date and the
// SHA-256 body digest; the signature is rsa-sha256 under the actor's private
// key. Verification of incoming signatures is not implemented in this
// version: the inbox trusts the actor field of received activities.
package signing

import (
	"bytes"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/totegamma/httpsig"

	"github.com/chdigius/activityhub/types"
)

// SignedHeaders is the header list every outgoing federation POST signs,
// in signing-string order.
var SignedHeaders = []string{httpsig.RequestTarget, "host", "date", "digest"}

// Sign returns the full header set for a compliant federation POST of body
// to targetURL: Host, Date, Digest, Signature and Content-Type.
func Sign(targetURL string, body []byte, actor *types.Actor) (http.Header, error) {
	return SignAt(targetURL, body, actor, time.Now())
}

// SignGet signs a body-less GET of targetURL: the signing string covers
// (request-target), host and date only, matching what remote servers expect
// for authorized fetches.
func SignGet(targetURL string, actor *types.Actor) (http.Header, error) {
	if actor.PrivateKey == nil {
		return nil, errors.Errorf("actor %s has no private key", actor.Username)
	}

	req, err := http.NewRequest(http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid target url")
	}
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	prefs := []httpsig.Algorithm{httpsig.RSA_SHA256}
	headersToSign := []string{httpsig.RequestTarget, "host", "date"}
	signer, _, err := httpsig.NewSigner(prefs, httpsig.DigestSha256, headersToSign, httpsig.Signature, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct signer")
	}

	err = signer.SignRequest(actor.PrivateKey, actor.KeyID(), req, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign request")
	}

	return req.Header, nil
}

// SignAt is Sign with an explicit Date. Signing identical inputs with the
// same key and date yields byte-identical headers.
func SignAt(targetURL string, body []byte, actor *types.Actor, date time.Time) (http.Header, error) {
	if actor.PrivateKey == nil {
		return nil, errors.Errorf("actor %s has no private key", actor.Username)
	}

	req, err := http.NewRequest(http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "invalid target url")
	}
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Date", date.UTC().Format(http.TimeFormat))
	req.Header.Set("Content-Type", "application/activity+json")

	prefs := []httpsig.Algorithm{httpsig.RSA_SHA256}
	signer, _, err := httpsig.NewSigner(prefs, httpsig.DigestSha256, SignedHeaders, httpsig.Signature, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct signer")
	}

	err = signer.SignRequest(actor.PrivateKey, actor.KeyID(), req, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign request")
	}

	return req.Header, nil
}
