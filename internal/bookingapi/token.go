package bookingapi

// token.go manages the shared guest token used to authenticate against
// the external API.  Fetches are coalesced with a 2-second grace window
// so a burst of unauthenticated requests cannot stampede the token
// endpoint.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrNoToken is returned when the token endpoint responds without a
// usable token field.
var ErrNoToken = errors.New("bookingapi: token endpoint returned no token")

// TokenManager fetches and caches the guest bearer token.  A zero
// AppID/AppKey pair disables authentication entirely, which the client
// treats as "no Authorization header".
type TokenManager struct {
	base   string
	appID  string
	appKey string
	http   *http.Client
	co     *Coalescer

	mu    sync.Mutex
	token string
}

// NewTokenManager builds a token manager for the given API base URL and
// guest credentials.
func NewTokenManager(base, appID, appKey string) *TokenManager {
	return &TokenManager{
		base:   base,
		appID:  appID,
		appKey: appKey,
		http:   &http.Client{Timeout: 10 * time.Second},
		co:     NewCoalescer(),
	}
}

// Token returns the cached guest token, fetching a fresh one when none
// is cached.  Concurrent callers share a single fetch.
func (t *TokenManager) Token(ctx context.Context) (string, error) {
	if t == nil || t.appID == "" {
		return "", nil
	}
	t.mu.Lock()
	cached := t.token
	t.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	body, err := t.co.Do("guest-token", TokenGrace, func() ([]byte, error) {
		return t.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	tok := decodeToken(body)
	if tok == "" {
		return "", ErrNoToken
	}
	t.mu.Lock()
	t.token = tok
	t.mu.Unlock()
	return tok, nil
}

// Invalidate drops the cached token.  Called by the client when the API
// answers 401 so the next request fetches a fresh one.
func (t *TokenManager) Invalidate() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.token = ""
	t.mu.Unlock()
	t.co.Forget("guest-token")
}

func (t *TokenManager) fetch(ctx context.Context) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"appId":  t.appID,
		"appKey": t.appKey,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/User/GuestLogin", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}
