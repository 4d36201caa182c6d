package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/twitchtv/twirp"

	"github.com/voxgate/callgateway/internal/core"
	"github.com/voxgate/callgateway/o11y"
	"github.com/voxgate/callgateway/pkg/token"
	"github.com/voxgate/callgateway/resilience"
)

// Client is the Media API Client (MC): a typed RPC client to the media
// server's fixed endpoint set, with admin-token caching and retry/backoff.
type Client struct {
	cfg    Config
	minter AdminTokenMinter
	http   *http.Client
	logger *o11y.Logger

	metrics *CallMetrics

	tokenMu      sync.Mutex
	adminToken   string
	tokenExpires time.Time
}

// New constructs a Client. minter mints the admin bearer token attached to
// every request (typically a *token.Authority).
func New(minter AdminTokenMinter, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		cfg:     cfg,
		minter:  minter,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  o11y.NewLogger(),
		metrics: &CallMetrics{},
	}
}

// Metrics returns the client's rolling call metrics.
func (c *Client) Metrics() Snapshot {
	return c.metrics.Snapshot()
}

// adminBearer returns a cached admin token, refreshing it 5 minutes before
// expiry per §4.2.
func (c *Client) adminBearer(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.adminToken != "" && time.Until(c.tokenExpires) > 5*time.Minute {
		return c.adminToken, nil
	}

	tok, err := c.minter.Mint(ctx, token.TypeAdmin, c.cfg.AdminIdentity, "", c.cfg.AdminTokenTTL, true)
	if err != nil {
		return "", core.NewError("media.adminBearer", core.ErrAuth, "failed to mint admin token", err)
	}

	c.adminToken = tok
	c.tokenExpires = time.Now().Add(c.cfg.AdminTokenTTL)
	return tok, nil
}

// toRetryPolicy converts Config.RetryPolicy to resilience.RetryPolicy.
func (c *Client) toRetryPolicy() resilience.RetryPolicy {
	p := c.cfg.RetryPolicy
	return resilience.RetryPolicy{
		MaxAttempts:    p.MaxAttempts,
		InitialBackoff: p.Base,
		MaxBackoff:     p.Max,
		BackoffFactor:  p.Multiplier,
		Jitter:         p.Jitter,
	}
}

// call performs one Twirp-style RPC to the media server: a JSON POST to
// /twirp/media.v1.MediaService/<method> carrying the admin bearer token.
// It retries per §4.2's retryable status/error set and records metrics for
// every attempt.
func call[Resp any](ctx context.Context, c *Client, method string, body any) (Resp, error) {
	var zero Resp
	attempt := 0

	result, err := resilience.Retry(ctx, c.toRetryPolicy(), func(ctx context.Context) (Resp, error) {
		isRetry := attempt > 0
		attempt++
		attemptStart := time.Now()

		bearer, err := c.adminBearer(ctx)
		if err != nil {
			c.metrics.recordAttempt(false, time.Since(attemptStart).Seconds()*1000, isRetry)
			return zero, err
		}

		resp, rpcErr := c.doOnce(ctx, method, body, bearer)
		latencyMs := time.Since(attemptStart).Seconds() * 1000

		if rpcErr != nil {
			c.metrics.recordAttempt(false, latencyMs, isRetry)
			return zero, rpcErr
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.metrics.recordAttempt(false, latencyMs, isRetry)
			return zero, statusError(method, resp)
		}

		var decoded Resp
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			c.metrics.recordAttempt(false, latencyMs, isRetry)
			return zero, core.NewError("media."+method, core.ErrInternal, "failed to decode response", err)
		}

		c.metrics.recordAttempt(true, latencyMs, isRetry)
		return decoded, nil
	})

	if err != nil {
		return zero, err
	}
	return result, nil
}

func (c *Client) doOnce(ctx context.Context, method string, body any, bearer string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, core.NewError("media."+method, core.ErrValidation, "failed to marshal request", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/twirp/media.v1.MediaService/" + method

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, core.NewError("media."+method, core.ErrInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.NewError("media."+method, core.ErrCancelled, "", ctx.Err())
		}
		return nil, core.NewError("media."+method, core.ErrConnection, "transport error", err)
	}
	return resp, nil
}

// statusError parses the media server's Twirp-shaped error body
// (`{"code":"...","msg":"...","meta":{...}}`) and maps it onto §4.2's error
// kind table, falling back to a plain status-code mapping when the response
// isn't a well-formed Twirp error (an intermediate proxy's 502, say).
func statusError(method string, resp *http.Response) error {
	if twErr, err := twirp.ErrorFromResponse(resp); err == nil {
		return core.NewError("media."+method, mapTwirpCode(twErr.Code()), twErr.Msg(), nil)
	}
	return core.NewError("media."+method, mapStatus(resp.StatusCode), fmt.Sprintf("status %d", resp.StatusCode), nil)
}

// CreateRoom creates a media-server room.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error) {
	return call[Room](ctx, c, "CreateRoom", req)
}

// ListRooms lists rooms, optionally filtered by name.
func (c *Client) ListRooms(ctx context.Context, req ListRoomsRequest) (ListRoomsResponse, error) {
	return call[ListRoomsResponse](ctx, c, "ListRooms", req)
}

// DeleteRoom tears down a room.
func (c *Client) DeleteRoom(ctx context.Context, req DeleteRoomRequest) (struct{}, error) {
	return call[struct{}](ctx, c, "DeleteRoom", req)
}

// ListParticipants lists a room's current participants.
func (c *Client) ListParticipants(ctx context.Context, req ListParticipantsRequest) (ListParticipantsResponse, error) {
	return call[ListParticipantsResponse](ctx, c, "ListParticipants", req)
}

// GetParticipant fetches one participant's state.
func (c *Client) GetParticipant(ctx context.Context, req GetParticipantRequest) (Participant, error) {
	return call[Participant](ctx, c, "GetParticipant", req)
}

// RemoveParticipant forcibly disconnects a participant.
func (c *Client) RemoveParticipant(ctx context.Context, req RemoveParticipantRequest) (struct{}, error) {
	return call[struct{}](ctx, c, "RemoveParticipant", req)
}

// UpdateParticipant updates a participant's metadata/permissions.
func (c *Client) UpdateParticipant(ctx context.Context, req UpdateParticipantRequest) (Participant, error) {
	return call[Participant](ctx, c, "UpdateParticipant", req)
}

// MutePublishedTrack mutes or unmutes a published track.
func (c *Client) MutePublishedTrack(ctx context.Context, req MuteTrackRequest) (struct{}, error) {
	return call[struct{}](ctx, c, "MutePublishedTrack", req)
}

// UpdateSubscriptions subscribes or unsubscribes a participant from tracks.
func (c *Client) UpdateSubscriptions(ctx context.Context, req UpdateSubscriptionsRequest) (struct{}, error) {
	return call[struct{}](ctx, c, "UpdateSubscriptions", req)
}

// SendData sends out-of-band data to room participants.
func (c *Client) SendData(ctx context.Context, req SendDataRequest) (struct{}, error) {
	return call[struct{}](ctx, c, "SendData", req)
}

// UpdateRoomMetadata updates a room's metadata.
func (c *Client) UpdateRoomMetadata(ctx context.Context, req UpdateRoomMetadataRequest) (Room, error) {
	return call[Room](ctx, c, "UpdateRoomMetadata", req)
}
