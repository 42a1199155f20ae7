package authlink

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IssuedToken is the result of IssueToken.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
	User      *User
	Record    *Token
}

// Response builds the body sent by the token issuance endpoint. The expiry
// is expressed in unix seconds.
func (t *IssuedToken) Response(cfg Config) map[string]any {
	tokenProp, expiresProp := DefaultTokenProperty, DefaultExpiresProperty
	includeUser := false
	if cfg != nil {
		if p := cfg.GetTokenProperty(); p != "" {
			tokenProp = p
		}
		if p := cfg.GetExpiresProperty(); p != "" {
			expiresProp = p
		}
		includeUser = cfg.GetIncludeUserInJwtResponse()
	}

	out := map[string]any{
		tokenProp:   t.Token,
		expiresProp: t.ExpiresAt.Unix(),
	}
	if includeUser && t.User != nil {
		out["user"] = t.User
	}
	return out
}

// IssueOption customizes a single IssueToken call.
type IssueOption func(*IssueRequest)

// WithDiscriminator sets the second half of the issuer claim. The HTTP
// endpoint uses the caller address.
func WithDiscriminator(disc string) IssueOption {
	return func(r *IssueRequest) {
		r.Discriminator = disc
	}
}

// WithTTL overrides the configured token lifetime.
func WithTTL(ttl time.Duration) IssueOption {
	return func(r *IssueRequest) {
		r.TTL = ttl
	}
}

// WithAudience overrides the configured audience.
func WithAudience(aud string) IssueOption {
	return func(r *IssueRequest) {
		r.Audience = aud
	}
}

// TokenManager issues, validates and revokes bearer tokens and records
// their use. Tokens move from issued to active on first tracked use and end
// either expired or revoked.
type TokenManager struct {
	deps     Deps
	inflight sync.WaitGroup
}

// NewTokenManager validates deps and returns a TokenManager.
func NewTokenManager(deps Deps) (*TokenManager, error) {
	if err := deps.validate(true); err != nil {
		return nil, err
	}
	return &TokenManager{deps: deps.withDefaults("tokens")}, nil
}

// IssueToken mints a token for the session user and stores it. A nil user
// means the session is not authenticated.
func (m *TokenManager) IssueToken(ctx context.Context, user *User, opts ...IssueOption) (*IssuedToken, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, newError(ErrNotAuthenticated, nil, nil)
	}

	req := IssueRequest{SubjectID: user.ID, IssuedAt: m.deps.Now()}
	for _, opt := range opts {
		if opt != nil {
			opt(&req)
		}
	}

	encoded, err := m.deps.Codec.Issue(req)
	if err != nil {
		m.deps.Logger.Debug("token could not be encoded", "user_id", user.ID.String(), "error", err)
		return nil, newError(ErrIssuance, err, map[string]any{"user_id": user.ID.String()})
	}

	ctx, cancel := context.WithTimeout(ctx, m.deps.storeTimeout())
	defer cancel()

	record, err := m.deps.Store.Tokens().Create(ctx, &Token{
		Token:     encoded.Token,
		OwnerID:   user.ID,
		Revoked:   false,
		ExpiresAt: encoded.ExpiresAt,
	})
	if err != nil {
		m.deps.Logger.Debug("token could not be stored", "user_id", user.ID.String(), "error", err)
		return nil, newError(ErrIssuance, err, map[string]any{"user_id": user.ID.String()})
	}

	m.deps.Metrics.TokenIssued()
	emitActivity(ctx, m.deps.Activity, m.deps.Logger, ActivityEvent{
		EventType: ActivityEventTokenIssued,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"token_id": record.ID.String(), "expires_at": encoded.ExpiresAt},
	})

	return &IssuedToken{
		Token:     encoded.Token,
		ExpiresAt: encoded.ExpiresAt,
		User:      user,
		Record:    record,
	}, nil
}

// ValidateToken checks signature, expiry, not-before and audience, in that
// order, and loads the user the token was issued to.
func (m *TokenManager) ValidateToken(ctx context.Context, token string) (*User, error) {
	return m.validate(ctx, token)
}

// ValidateRequest validates the token carried by req. With usage tracking
// enabled the stored token must exist and not be revoked, and the use is
// recorded in the background. Unless stateless, the user is bound to the
// request session.
func (m *TokenManager) ValidateRequest(ctx context.Context, req Request) (*User, error) {
	token, ok := req.AccessToken()
	if !ok {
		return nil, m.reject(newError(ErrTokenMissing, nil, nil))
	}

	user, err := m.validate(ctx, token)
	if err != nil {
		return nil, err
	}

	var record *Token
	if m.deps.Config.GetTrackUsage() {
		record, err = m.findTracked(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	if !m.deps.Config.GetStateless() {
		if err := req.BindSessionUser(ctx, user); err != nil {
			m.deps.Logger.Warn("user could not be bound to session", "user_id", user.ID.String(), "error", err)
		}
	}

	if record != nil {
		m.trackUse(ctx, record.ID, req.RemoteAddress())
	}

	m.deps.Logger.Debug("access token accepted", "user_id", user.ID.String())
	return user, nil
}

// RevokeToken marks the stored token as revoked. Revoking a revoked token is
// a no-op.
func (m *TokenManager) RevokeToken(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, m.deps.storeTimeout())
	defer cancel()

	record, err := m.deps.Store.Tokens().FindByToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return newError(ErrTokenNotFound, err, nil)
		}
		return storeError("revoke_token", err)
	}
	if record.Revoked {
		return nil
	}

	if err := m.deps.Store.Tokens().Revoke(ctx, record.ID); err != nil {
		return storeError("revoke_token", err)
	}

	m.deps.Metrics.TokensRevoked(1)
	emitActivity(ctx, m.deps.Activity, m.deps.Logger, ActivityEvent{
		EventType: ActivityEventTokenRevoked,
		UserID:    record.OwnerID.String(),
		Metadata:  map[string]any{"token_id": record.ID.String()},
	})
	return nil
}

// RevokeUserTokens revokes every active token owned by userID and returns
// how many changed.
func (m *TokenManager) RevokeUserTokens(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.deps.storeTimeout())
	defer cancel()

	n, err := m.deps.Store.Tokens().RevokeByOwner(ctx, userID)
	if err != nil {
		return 0, storeError("revoke_user_tokens", err)
	}

	if n > 0 {
		m.deps.Metrics.TokensRevoked(n)
		emitActivity(ctx, m.deps.Activity, m.deps.Logger, ActivityEvent{
			EventType: ActivityEventTokenRevoked,
			UserID:    userID.String(),
			Metadata:  map[string]any{"count": n},
		})
	}
	return n, nil
}

// TokenStatus reports the lifecycle state of a stored token.
func (m *TokenManager) TokenStatus(ctx context.Context, token string) (TokenState, error) {
	ctx, cancel := context.WithTimeout(ctx, m.deps.storeTimeout())
	defer cancel()

	record, err := m.deps.Store.Tokens().FindByToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return "", newError(ErrTokenNotFound, err, nil)
		}
		return "", storeError("token_status", err)
	}

	state := record.StateAt(m.deps.Now(), false)
	if state != TokenStateIssued {
		return state, nil
	}
	used, err := m.deps.Store.Uses().Exists(ctx, record.ID)
	if err != nil {
		return "", storeError("token_status", err)
	}
	return record.StateAt(m.deps.Now(), used), nil
}

func (m *TokenManager) validate(ctx context.Context, token string) (*User, error) {
	claims, err := m.deps.Codec.Decode(token)
	if err != nil {
		return nil, m.reject(err)
	}

	now := m.deps.Now()

	if claims.ExpiresAt == nil {
		return nil, m.reject(newError(ErrMalformedToken, nil, map[string]any{"reason": "missing exp claim"}))
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, m.reject(newError(ErrTokenExpired, nil, map[string]any{"expired_at": claims.ExpiresAt.Time}))
	}
	if claims.NotBefore != nil && !now.After(claims.NotBefore.Time) {
		return nil, m.reject(newError(ErrTokenEarly, nil, map[string]any{"not_before": claims.NotBefore.Time}))
	}

	audience := m.deps.Config.GetAudience()
	if (audience == "" && len(claims.Audience) > 0) || (audience != "" && !claims.HasAudience(audience)) {
		return nil, m.reject(newError(ErrAudienceMismatch, nil, map[string]any{"audience": []string(claims.Audience)}))
	}

	userID, err := claims.SubjectID()
	if err != nil {
		return nil, m.reject(err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.deps.storeTimeout())
	defer cancel()

	user, err := m.deps.Store.Users().FindByID(ctx, userID)
	if err != nil {
		if IsNotFound(err) {
			return nil, m.reject(newError(ErrUserNotFound, err, map[string]any{"user_id": userID.String()}))
		}
		return nil, storeError("find_token_user", err)
	}

	return user, nil
}

func (m *TokenManager) findTracked(ctx context.Context, token string) (*Token, error) {
	ctx, cancel := context.WithTimeout(ctx, m.deps.storeTimeout())
	defer cancel()

	record, err := m.deps.Store.Tokens().FindByToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return nil, m.reject(newError(ErrTokenNotFound, err, nil))
		}
		return nil, storeError("find_token", err)
	}
	if record.Revoked {
		return nil, m.reject(newError(ErrTokenRevoked, nil, map[string]any{"token_id": record.ID.String()}))
	}
	return record, nil
}

func (m *TokenManager) reject(err error) error {
	reason := "unknown"
	if richErr := asRichError(err); richErr != nil && richErr.TextCode != "" {
		reason = richErr.TextCode
	}
	m.deps.Logger.Debug("access token rejected", append([]any{"reason", reason}, LogFields(err)...)...)
	m.deps.Metrics.TokenRejected(reason)
	return err
}
