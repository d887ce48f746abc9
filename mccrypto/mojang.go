package mccrypto

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/mcerr"
)

// SessionServerURL is the Mojang session-server hasJoined endpoint,
// grounded on original_source's client_only.rs (the URL string it
// formats) and on the fan-out client the pack's SKevo18-mc-dual-proxy
// repo builds against the same endpoint.
const SessionServerURL = "https://sessionserver.mojang.com/session/minecraft/hasJoined"

// Profile is the authenticated player identity returned by hasJoined.
type Profile struct {
	ID uuid.UUID
	Name string
	Properties []Property
}

// Property is a login-success profile property (e.g. "textures").
type Property struct {
	Name string `json:"name"`
	Value string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

type hasJoinedResponse struct {
	ID string `json:"id"`
	Name string `json:"name"`
	Properties []Property `json:"properties"`
}

// Authenticator is the interface ClientOnly mode depends on, satisfied by
// *SessionClient in production and by a fake in tests that would otherwise
// need to reach the real Mojang session server.
type Authenticator interface {
	HasJoined(ctx context.Context, username, serverHash string) (Profile, error)
}

// SessionClient authenticates players against the Mojang session server
// and caches successful results briefly.I ("cache authenticated
// profiles briefly (default 5 minutes) keyed by (username, server_id)").
type SessionClient struct {
	http *http.Client
	ttl time.Duration

	mu sync.Mutex
	cache map[string]cachedProfile
}

type cachedProfile struct {
	profile Profile
	expiresAt time.Time
}

// NewSessionClient builds a SessionClient with a default 5 minute cache
// TTL and a 10 second HTTP timeout.
func NewSessionClient() *SessionClient {
	return &SessionClient{
		http: &http.Client{Timeout: 10 * time.Second},
		ttl: 5 * time.Minute,
		cache: make(map[string]cachedProfile),
	}
}

// HasJoined authenticates username against serverHash. A 2xx response
// with a non-empty profile succeeds; anything else returns
// mcerr.ErrAuthFailed.
func (c *SessionClient) HasJoined(ctx context.Context, username, serverHash string) (Profile, error) {
	key := username + "\x00" + serverHash

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok && time.Now().Before(cached.expiresAt) {
		c.mu.Unlock()
		return cached.profile, nil
	}
	c.mu.Unlock()

	reqURL := SessionServerURL + "?" + url.Values{
		"username": {username},
		"serverId": {serverHash},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Profile{}, errors.Wrap(err, "mccrypto: build hasJoined request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Profile{}, errors.Wrap(mcerr.ErrAuthFailed, "hasJoined request failed: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Profile{}, errors.Wrapf(mcerr.ErrAuthFailed, "hasJoined returned status %d", resp.StatusCode)
	}

	var body hasJoinedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Profile{}, errors.Wrap(mcerr.ErrAuthFailed, "malformed hasJoined response")
	}
	if body.ID == "" || body.Name == "" {
		return Profile{}, errors.Wrap(mcerr.ErrAuthFailed, "empty hasJoined profile")
	}

	id, err := parseUndashedUUID(body.ID)
	if err != nil {
		return Profile{}, errors.Wrap(mcerr.ErrAuthFailed, "malformed profile uuid")
	}

	profile := Profile{ID: id, Name: body.Name, Properties: body.Properties}

	c.mu.Lock()
	c.cache[key] = cachedProfile{profile: profile, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return profile, nil
}

// parseUndashedUUID parses the 32-hex-digit form Mojang returns (no
// hyphens) into a uuid.UUID.
func parseUndashedUUID(s string) (uuid.UUID, error) {
	if len(s) != 32 {
		return uuid.Nil, errors.Errorf("mccrypto: expected 32-character UUID, got %d", len(s))
	}
	dashed := s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
	return uuid.Parse(dashed)
}
