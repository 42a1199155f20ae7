package authlink

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// NotBeforeSkew backdates the default nbf claim so a token is usable in the
// same second it was issued.
const NotBeforeSkew = time.Second

// issuerSeparator joins the subject id and the discriminator in the iss claim.
const issuerSeparator = "|"

// TokenClaims is the claim set carried by every issued token. The issuer
// claim has the form "<user id>|<discriminator>".
type TokenClaims struct {
	jwt.RegisteredClaims
}

// SubjectID parses the user id out of the issuer claim.
func (c *TokenClaims) SubjectID() (uuid.UUID, error) {
	if c == nil {
		return uuid.Nil, newError(ErrMalformedToken, nil, nil)
	}
	raw, _, _ := strings.Cut(c.Issuer, issuerSeparator)
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, newError(ErrMalformedToken, err, map[string]any{"iss": c.Issuer})
	}
	return id, nil
}

// Discriminator returns the part of the issuer claim after the user id.
func (c *TokenClaims) Discriminator() string {
	if c == nil {
		return ""
	}
	_, disc, _ := strings.Cut(c.Issuer, issuerSeparator)
	return disc
}

// HasAudience reports whether aud is one of the audience values.
func (c *TokenClaims) HasAudience(aud string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Audience, aud)
}

// IssueRequest describes a token to encode. Zero fields take the codec
// defaults.
type IssueRequest struct {
	SubjectID uuid.UUID
	// Discriminator is appended to the issuer claim. Defaults to the token id.
	Discriminator string
	Audience      string
	TTL           time.Duration
	IssuedAt      time.Time
	NotBefore     time.Time
}

// EncodedToken is a signed token and the instants it was minted for.
type EncodedToken struct {
	Token     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies tokens with a shared HMAC secret. It holds no
// mutable state and is safe for concurrent use.
type Codec struct {
	key      []byte
	method   jwt.SigningMethod
	subject  string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithCodecClock sets the clock used for iat, nbf and exp.
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec builds a codec from the signing settings in cfg.
func NewCodec(cfg Config, opts ...CodecOption) (*Codec, error) {
	if cfg == nil {
		return nil, goerrors.New("codec requires a config", goerrors.CategoryBadInput)
	}

	key := cfg.GetSigningKey()
	if key == "" {
		return nil, goerrors.New("signing key is required", goerrors.CategoryBadInput).
			WithTextCode("SIGNING_KEY_REQUIRED")
	}

	alg := cfg.GetSigningMethod()
	if alg == "" {
		alg = DefaultSigningMethod
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, goerrors.New(fmt.Sprintf("unsupported signing method %q", alg), goerrors.CategoryBadInput).
			WithTextCode("SIGNING_METHOD_UNSUPPORTED")
	}

	c := &Codec{
		key:      []byte(key),
		method:   method,
		subject:  cfg.GetSubject(),
		audience: cfg.GetAudience(),
		ttl:      cfg.GetTokenTTL(),
		now:      time.Now,
	}
	if c.subject == "" {
		c.subject = DefaultSubject
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTokenTTL
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Audience is the configured audience.
func (c *Codec) Audience() string {
	return c.audience
}

// Issue encodes and signs a token for req.
func (c *Codec) Issue(req IssueRequest) (EncodedToken, error) {
	if req.SubjectID == uuid.Nil {
		return EncodedToken{}, goerrors.New("token subject is required", goerrors.CategoryBadInput)
	}
	if req.TTL < 0 {
		return EncodedToken{}, goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = c.now()
	}
	ttl := req.TTL
	if ttl == 0 {
		ttl = c.ttl
	}
	notBefore := req.NotBefore
	if notBefore.IsZero() {
		notBefore = issuedAt.Add(-NotBeforeSkew)
	}
	audience := req.Audience
	if audience == "" {
		audience = c.audience
	}

	tokenID := uuid.NewString()
	disc := req.Discriminator
	if disc == "" {
		disc = tokenID
	}

	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    req.SubjectID.String() + issuerSeparator + disc,
			Subject:   c.subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(notBefore),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			ID:        tokenID,
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.key)
	if err != nil {
		return EncodedToken{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return EncodedToken{
		Token:     signed,
		ID:        tokenID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Decode verifies the signature and structure of token. Expiry, not-before
// and audience are left to the caller.
func (c *Codec) Decode(token string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, newError(ErrMalformedToken, nil, map[string]any{"reason": "empty token"})
	}

	parser := jwt.NewParser(
		jwt.WithoutClaimsValidation(),
		jwt.WithValidMethods([]string{c.method.Alg()}),
	)

	claims := &TokenClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, newError(ErrInvalidSignature, err, nil)
		default:
			return nil, newError(ErrMalformedToken, err, nil)
		}
	}
	return claims, nil
}
