package authlink_test

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-authlink"
)

type testConfig struct {
	key          string
	method       string
	audience     string
	subject      string
	ttl          time.Duration
	stateless    bool
	trackUsage   bool
	tokenProp    string
	expiresProp  string
	includeUser  bool
	storeTimeout time.Duration
}

func newTestConfig() *testConfig {
	return &testConfig{
		key:        "0123456789abcdef0123456789abcdef",
		method:     "HS256",
		audience:   "https://app.example.com",
		ttl:        time.Hour,
		trackUsage: true,
	}
}

func (c *testConfig) GetSigningKey() string             { return c.key }
func (c *testConfig) GetSigningMethod() string          { return c.method }
func (c *testConfig) GetAudience() string               { return c.audience }
func (c *testConfig) GetSubject() string                { return c.subject }
func (c *testConfig) GetTokenTTL() time.Duration        { return c.ttl }
func (c *testConfig) GetStateless() bool                { return c.stateless }
func (c *testConfig) GetTrackUsage() bool               { return c.trackUsage }
func (c *testConfig) GetTokenProperty() string          { return c.tokenProp }
func (c *testConfig) GetExpiresProperty() string        { return c.expiresProp }
func (c *testConfig) GetIncludeUserInJwtResponse() bool { return c.includeUser }
func (c *testConfig) GetStoreTimeout() time.Duration    { return c.storeTimeout }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testRequest struct {
	token   string
	addr    authlink.RemoteAddress
	bindErr error

	mu    sync.Mutex
	bound []*authlink.User
}

func (r *testRequest) AccessToken() (string, bool) {
	return r.token, r.token != ""
}

func (r *testRequest) RemoteAddress() authlink.RemoteAddress {
	return r.addr
}

func (r *testRequest) BindSessionUser(ctx context.Context, user *authlink.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound = append(r.bound, user)
	return r.bindErr
}

func (r *testRequest) boundUsers() []*authlink.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*authlink.User(nil), r.bound...)
}

type capturingSink struct {
	mu     sync.Mutex
	events []authlink.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt authlink.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []authlink.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]authlink.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

var errStoreDown = errors.New("store is down")

// memStore is an in-memory IdentityStore. Records are copied in and out so
// callers cannot mutate stored state by accident.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*authlink.User
	auths    []*authlink.Auth
	tokens   []*authlink.Token
	uses     []*authlink.Use
	attempts []*authlink.Attempt

	usageReads int

	failTokenCreate bool
	failUseCreate   bool
	failUsers       bool
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]*authlink.User{}}
}

func (s *memStore) Users() authlink.UserStore       { return memUsers{s} }
func (s *memStore) Auths() authlink.AuthStore       { return memAuths{s} }
func (s *memStore) Tokens() authlink.TokenStore     { return memTokens{s} }
func (s *memStore) Uses() authlink.UseStore         { return memUses{s} }
func (s *memStore) Attempts() authlink.AttemptStore { return memAttempts{s} }

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx authlink.IdentityStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s)
}

func (s *memStore) authCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.auths)
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *memStore) useCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uses)
}

func (s *memStore) usageReadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usageReads
}

func (s *memStore) addUser(u *authlink.User) *authlink.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.ID] = copyUser(u)
	return u
}

func (s *memStore) addAuth(a *authlink.Auth) *authlink.Auth {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.auths = append(s.auths, copyAuth(a))
	return a
}

func copyUser(u *authlink.User) *authlink.User {
	c := *u
	c.Auths = nil
	c.Metadata = maps.Clone(u.Metadata)
	return &c
}

func copyAuth(a *authlink.Auth) *authlink.Auth {
	c := *a
	c.User = nil
	c.Attributes = maps.Clone(a.Attributes)
	if a.UserID != nil {
		id := *a.UserID
		c.UserID = &id
	}
	return &c
}

func copyToken(t *authlink.Token) *authlink.Token {
	c := *t
	return &c
}

type memUsers struct{ s *memStore }

func (m memUsers) FindByID(ctx context.Context, id uuid.UUID) (*authlink.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failUsers {
		return nil, errStoreDown
	}
	u, ok := m.s.users[id]
	if !ok {
		return nil, authlink.NotFound("user", map[string]any{"id": id.String()})
	}
	return copyUser(u), nil
}

func (m memUsers) FindWithAuths(ctx context.Context, id uuid.UUID) (*authlink.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failUsers {
		return nil, errStoreDown
	}
	u, ok := m.s.users[id]
	if !ok {
		return nil, authlink.NotFound("user", map[string]any{"id": id.String()})
	}
	out := copyUser(u)
	for _, a := range m.s.auths {
		if a.UserID != nil && *a.UserID == id {
			out.Auths = append(out.Auths, copyAuth(a))
		}
	}
	return out, nil
}

func (m memUsers) FindOrCreate(ctx context.Context, criteria authlink.UserCriteria, defaults *authlink.User) (*authlink.User, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failUsers {
		return nil, false, errStoreDown
	}
	if !criteria.IsZero() {
		for _, u := range m.s.users {
			if criteria.ID != uuid.Nil && u.ID != criteria.ID {
				continue
			}
			if criteria.Email != "" && u.Email != criteria.Email {
				continue
			}
			if criteria.Username != "" && u.Username != criteria.Username {
				continue
			}
			return copyUser(u), false, nil
		}
	}

	u := &authlink.User{}
	if defaults != nil {
		u = copyUser(defaults)
	}
	if u.Email == "" {
		u.Email = criteria.Email
	}
	if u.Username == "" {
		u.Username = criteria.Username
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.s.users[u.ID] = copyUser(u)
	return u, true, nil
}

type memAuths struct{ s *memStore }

func (m memAuths) FindOne(ctx context.Context, criteria authlink.AuthCriteria) (*authlink.Auth, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if !criteria.IsZero() {
		for _, a := range m.s.auths {
			if criteria.Matches(a) {
				return copyAuth(a), nil
			}
		}
	}
	return nil, authlink.NotFound("auth", nil)
}

func (m memAuths) FindOrCreate(ctx context.Context, criteria authlink.AuthCriteria, defaults *authlink.Auth) (*authlink.Auth, bool, error) {
	found, err := m.FindOne(ctx, criteria)
	if err == nil {
		return found, false, nil
	}
	a := &authlink.Auth{}
	if defaults != nil {
		a = copyAuth(defaults)
	}
	if a.Provider == "" {
		a.Provider = criteria.Provider
	}
	if a.ThirdPartyID == "" {
		a.ThirdPartyID = criteria.ThirdPartyID
	}
	if a.Email == "" {
		a.Email = criteria.Email
	}
	if a.UserID == nil && criteria.UserID != uuid.Nil {
		a.LinkTo(criteria.UserID)
	}
	created, err := m.Create(ctx, a)
	return created, err == nil, err
}

func (m memAuths) Create(ctx context.Context, a *authlink.Auth) (*authlink.Auth, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.s.auths = append(m.s.auths, copyAuth(a))
	return copyAuth(a), nil
}

func (m memAuths) Update(ctx context.Context, a *authlink.Auth) (*authlink.Auth, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i, cur := range m.s.auths {
		if cur.ID == a.ID {
			m.s.auths[i] = copyAuth(a)
			return copyAuth(a), nil
		}
	}
	return nil, authlink.NotFound("auth", nil)
}

func (m memAuths) ListByUser(ctx context.Context, userID uuid.UUID) ([]*authlink.Auth, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*authlink.Auth
	for _, a := range m.s.auths {
		if a.UserID != nil && *a.UserID == userID {
			out = append(out, copyAuth(a))
		}
	}
	return out, nil
}

type memTokens struct{ s *memStore }

func (m memTokens) Create(ctx context.Context, t *authlink.Token) (*authlink.Token, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failTokenCreate {
		return nil, errStoreDown
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.s.tokens = append(m.s.tokens, copyToken(t))
	return copyToken(t), nil
}

func (m memTokens) FindByToken(ctx context.Context, token string) (*authlink.Token, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, t := range m.s.tokens {
		if t.Token == token {
			return copyToken(t), nil
		}
	}
	return nil, authlink.NotFound("token", nil)
}

func (m memTokens) Revoke(ctx context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, t := range m.s.tokens {
		if t.ID == id {
			t.Revoked = true
			return nil
		}
	}
	return authlink.NotFound("token", nil)
}

func (m memTokens) RevokeByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := 0
	for _, t := range m.s.tokens {
		if t.OwnerID == ownerID && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

type memUses struct{ s *memStore }

func (m memUses) Create(ctx context.Context, u *authlink.Use) (*authlink.Use, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failUseCreate {
		return nil, errStoreDown
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	c := *u
	m.s.uses = append(m.s.uses, &c)
	return u, nil
}

func (m memUses) ListByToken(ctx context.Context, tokenID uuid.UUID) ([]*authlink.Use, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.usageReads++
	var out []*authlink.Use
	for _, u := range m.s.uses {
		if u.TokenID == tokenID {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m memUses) Exists(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.usageReads++
	for _, u := range m.s.uses {
		if u.TokenID == tokenID {
			return true, nil
		}
	}
	return false, nil
}

type memAttempts struct{ s *memStore }

func (m memAttempts) Create(ctx context.Context, a *authlink.Attempt) (*authlink.Attempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	c := *a
	m.s.attempts = append(m.s.attempts, &c)
	return a, nil
}

func (m memAttempts) ListByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]*authlink.Attempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*authlink.Attempt
	for i := len(m.s.attempts) - 1; i >= 0; i-- {
		a := m.s.attempts[i]
		if a.UserID != userID || (!since.IsZero() && a.CreatedAt.Before(since)) {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	return out, nil
}
