package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	lkauth "github.com/livekit/protocol/auth"

	"github.com/voxgate/callgateway/internal/core"
	"github.com/voxgate/callgateway/o11y"
)

// Authority is the Token Authority (TA): it mints, validates, and
// auto-renews capability tokens. Its token table is protected by a single
// internal lock shared between Mint/Validate/CheckAccess/Revoke and the
// renewal loop, per §5's shared-mutable-state model.
type Authority struct {
	cfg    Config
	logger *o11y.Logger

	mu     sync.Mutex
	tokens map[string]*CapabilityToken // keyed by identity

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewAuthority constructs an Authority and starts its renewal loop.
func NewAuthority(opts ...Option) (*Authority, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, core.NewError("token.NewAuthority", core.ErrValidation, "api_key and api_secret are required", nil)
	}

	a := &Authority{
		cfg:    cfg,
		logger: o11y.NewLogger(),
		tokens: make(map[string]*CapabilityToken),
		stop:   make(chan struct{}),
	}

	a.wg.Add(1)
	go a.renewalLoop()

	return a, nil
}

// Mint creates a token of the given type for identity, optionally scoped to
// room. ttl of zero uses the Authority's configured default.
func (a *Authority) Mint(ctx context.Context, tokenType Type, identity, room string, ttl time.Duration, autoRenew bool) (string, error) {
	if identity == "" {
		return "", core.NewError("token.Mint", core.ErrValidation, "identity is required", nil)
	}
	if ttl <= 0 {
		ttl = a.cfg.DefaultTTL
	}

	grants := grantsForType(tokenType)
	serialized, issuedAt, expiresAt, err := a.sign(identity, room, grants, ttl)
	if err != nil {
		return "", core.NewError("token.Mint", core.ErrInternal, "failed to sign token", err)
	}

	tok := &CapabilityToken{
		Identity:   identity,
		RoomName:   room,
		Grants:     grants,
		TokenType:  tokenType,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		AutoRenew:  autoRenew,
		TTL:        ttl,
		Serialized: serialized,
	}

	a.mu.Lock()
	a.tokens[identity] = tok
	a.mu.Unlock()

	return serialized, nil
}

// sign builds and signs a LiveKit access token carrying grants.
func (a *Authority) sign(identity, room string, grants Grants, ttl time.Duration) (string, time.Time, time.Time, error) {
	at := lkauth.NewAccessToken(a.cfg.APIKey, a.cfg.APISecret)
	at.SetIdentity(identity)
	at.SetValidFor(ttl)

	vg := &lkauth.VideoGrant{
		RoomJoin:             grants.RoomJoin,
		RoomCreate:           grants.RoomCreate,
		RoomList:             grants.RoomList,
		RoomAdmin:            grants.RoomAdmin,
		RoomRecord:           grants.RoomRecord,
		IngressAdmin:         grants.IngressAdmin,
		CanPublish:           &grants.CanPublish,
		CanSubscribe:         &grants.CanSubscribe,
		CanPublishData:       &grants.CanPublishData,
		CanUpdateOwnMetadata: &grants.CanUpdateOwnMetadata,
	}
	if room != "" {
		vg.Room = room
	}
	if grants.CanPublishSources != nil {
		sources := make([]string, len(grants.CanPublishSources))
		for i, s := range grants.CanPublishSources {
			sources[i] = string(s)
		}
		vg.CanPublishSources = sources
	}
	at.AddGrant(vg)

	jwtStr, err := at.ToJWT()
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}

	issuedAt := time.Now()
	return jwtStr, issuedAt, issuedAt.Add(ttl), nil
}

// Validate verifies token's signature, issuer, expiry, and required claims,
// returning the decoded grants on success.
func (a *Authority) Validate(ctx context.Context, tokenStr string) ValidationResult {
	apiToken, err := lkauth.ParseAPIToken(tokenStr)
	if err != nil {
		return ValidationResult{Valid: false, Error: fmt.Sprintf("invalid token: %v", err)}
	}

	claims, err := apiToken.Verify(a.cfg.APISecret)
	if err != nil {
		return ValidationResult{Valid: false, Error: fmt.Sprintf("verification failed: %v", err)}
	}
	if apiToken.APIKey() != a.cfg.APIKey {
		return ValidationResult{Valid: false, Error: "invalid issuer"}
	}
	if claims.Video == nil {
		return ValidationResult{Valid: false, Error: "missing video grant"}
	}

	grants := Grants{
		RoomJoin:             claims.Video.RoomJoin,
		RoomCreate:           claims.Video.RoomCreate,
		RoomList:             claims.Video.RoomList,
		RoomAdmin:            claims.Video.RoomAdmin,
		RoomRecord:           claims.Video.RoomRecord,
		IngressAdmin:         claims.Video.IngressAdmin,
		CanPublish:           boolValue(claims.Video.CanPublish),
		CanSubscribe:         boolValue(claims.Video.CanSubscribe),
		CanPublishData:       boolValue(claims.Video.CanPublishData),
		CanUpdateOwnMetadata: boolValue(claims.Video.CanUpdateOwnMetadata),
	}

	var expiresAt, issuedAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	} else {
		issuedAt = expiresAt.Add(-10 * time.Minute)
	}

	return ValidationResult{
		Valid:     true,
		Identity:  claims.Subject,
		Room:      claims.Video.Room,
		Grants:    grants,
		ExpiresAt: expiresAt,
		IssuedAt:  issuedAt,
	}
}

func boolValue(b *bool) bool {
	return b != nil && *b
}

// CheckAccess validates token and additionally requires that it carries
// every grant in required, and (if room is non-empty) is scoped to that room.
func (a *Authority) CheckAccess(ctx context.Context, tokenStr string, required []Grant, room string) ValidationResult {
	result := a.Validate(ctx, tokenStr)
	if !result.Valid {
		return result
	}

	if room != "" && result.Room != "" && result.Room != room {
		return ValidationResult{Valid: false, Error: fmt.Sprintf("token not valid for room %s", room)}
	}

	for _, g := range required {
		if !hasGrant(result.Grants, g) {
			return ValidationResult{Valid: false, Error: fmt.Sprintf("missing required grant: %s", g)}
		}
	}

	return result
}

func hasGrant(g Grants, grant Grant) bool {
	switch grant {
	case GrantRoomJoin:
		return g.RoomJoin
	case GrantRoomCreate:
		return g.RoomCreate
	case GrantRoomList:
		return g.RoomList
	case GrantRoomAdmin:
		return g.RoomAdmin
	case GrantRoomRecord:
		return g.RoomRecord
	case GrantIngressAdmin:
		return g.IngressAdmin
	case GrantCanPublish:
		return g.CanPublish
	case GrantCanSubscribe:
		return g.CanSubscribe
	case GrantCanPublishData:
		return g.CanPublishData
	case GrantCanUpdateOwnMetadata:
		return g.CanUpdateOwnMetadata
	default:
		return false
	}
}

// Revoke removes identity's live token, stopping any future renewal.
func (a *Authority) Revoke(identity string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.tokens[identity]; !ok {
		return false
	}
	delete(a.tokens, identity)
	return true
}

// TokensByRoom returns the identities of every live token currently scoped
// to room.
func (a *Authority) TokensByRoom(room string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var identities []string
	for identity, tok := range a.tokens {
		if tok.RoomName == room {
			identities = append(identities, identity)
		}
	}
	return identities
}

// renewalLoop checks every live token once per RenewalInterval and renews
// any within RenewalWindow of expiry. Renewal failures are logged and
// retried on the next tick.
func (a *Authority) renewalLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.RenewalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.renewDue()
		}
	}
}

func (a *Authority) renewDue() {
	now := time.Now()

	a.mu.Lock()
	due := make([]*CapabilityToken, 0)
	for _, tok := range a.tokens {
		if tok.AutoRenew && tok.ExpiresAt.Sub(now) <= a.cfg.RenewalWindow {
			due = append(due, tok)
		}
	}
	a.mu.Unlock()

	for _, tok := range due {
		serialized, issuedAt, expiresAt, err := a.sign(tok.Identity, tok.RoomName, tok.Grants, tok.TTL)
		if err != nil {
			a.logger.Error(context.Background(), "token renewal failed", "identity", tok.Identity, "error", err)
			continue
		}

		a.mu.Lock()
		if current, ok := a.tokens[tok.Identity]; ok {
			current.Serialized = serialized
			current.IssuedAt = issuedAt
			current.ExpiresAt = expiresAt
		}
		a.mu.Unlock()

		a.logger.Info(context.Background(), "token renewed", "identity", tok.Identity, "expires_at", expiresAt)
	}
}

// Shutdown stops the renewal loop. Idempotent.
func (a *Authority) Shutdown(ctx context.Context) error {
	select {
	case <-a.stop:
		return nil
	default:
		close(a.stop)
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
