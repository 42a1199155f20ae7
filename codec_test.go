package authlink_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-authlink"
)

func TestNewCodec_Validation(t *testing.T) {
	_, err := authlink.NewCodec(nil)
	assert.Error(t, err)

	cfg := newTestConfig()
	cfg.key = ""
	_, err = authlink.NewCodec(cfg)
	assert.True(t, authlink.HasTextCode(err, "SIGNING_KEY_REQUIRED"))

	cfg = newTestConfig()
	cfg.method = "RS256"
	_, err = authlink.NewCodec(cfg)
	assert.True(t, authlink.HasTextCode(err, "SIGNING_METHOD_UNSUPPORTED"))

	cfg = newTestConfig()
	cfg.method = ""
	_, err = authlink.NewCodec(cfg)
	assert.NoError(t, err, "empty method defaults to HS256")
}

func TestCodec_IssueDefaults(t *testing.T) {
	clock := newTestClock()
	cfg := newTestConfig()
	cfg.ttl = 0
	codec, err := authlink.NewCodec(cfg, authlink.WithCodecClock(clock.Now))
	require.NoError(t, err)

	subject := uuid.New()
	encoded, err := codec.Issue(authlink.IssueRequest{SubjectID: subject})
	require.NoError(t, err)

	claims, err := codec.Decode(encoded.Token)
	require.NoError(t, err)

	assert.Equal(t, authlink.DefaultSubject, claims.Subject)
	assert.Equal(t, encoded.ID, claims.ID)
	assert.Equal(t, encoded.ID, claims.Discriminator(), "discriminator defaults to the token id")
	assert.True(t, claims.HasAudience(cfg.audience))
	assert.True(t, clock.Now().Equal(claims.IssuedAt.Time))
	assert.True(t, clock.Now().Add(-authlink.NotBeforeSkew).Equal(claims.NotBefore.Time))
	assert.True(t, clock.Now().Add(authlink.DefaultTokenTTL).Equal(claims.ExpiresAt.Time))

	id, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, subject, id)
}

func TestCodec_IssueRejectsBadRequests(t *testing.T) {
	codec, err := authlink.NewCodec(newTestConfig())
	require.NoError(t, err)

	_, err = codec.Issue(authlink.IssueRequest{})
	assert.Error(t, err)

	_, err = codec.Issue(authlink.IssueRequest{SubjectID: uuid.New(), TTL: -time.Second})
	assert.Error(t, err)
}

func TestCodec_OmitsEmptyAudience(t *testing.T) {
	cfg := newTestConfig()
	cfg.audience = ""
	codec, err := authlink.NewCodec(cfg)
	require.NoError(t, err)

	encoded, err := codec.Issue(authlink.IssueRequest{SubjectID: uuid.New()})
	require.NoError(t, err)

	claims, err := codec.Decode(encoded.Token)
	require.NoError(t, err)
	assert.Empty(t, claims.Audience)
}

func TestCodec_DecodeRejectsOtherAlgorithms(t *testing.T) {
	cfg := newTestConfig()
	codec, err := authlink.NewCodec(cfg)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer: uuid.NewString(),
	}).SignedString([]byte(cfg.key))
	require.NoError(t, err)
	_, err = codec.Decode(hs512)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer: uuid.NewString(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = codec.Decode(none)
	assert.Error(t, err)
}

func TestTokenClaims_SubjectID(t *testing.T) {
	var nilClaims *authlink.TokenClaims
	_, err := nilClaims.SubjectID()
	assert.True(t, authlink.IsMalformedError(err))
	assert.Empty(t, nilClaims.Discriminator())
	assert.False(t, nilClaims.HasAudience("x"))

	claims := &authlink.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "not-a-uuid|host"}}
	_, err = claims.SubjectID()
	assert.True(t, authlink.IsMalformedError(err))
	assert.Equal(t, "host", claims.Discriminator())

	id := uuid.New()
	claims.Issuer = id.String()
	got, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Empty(t, claims.Discriminator())
}
