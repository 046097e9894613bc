package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "taskflow/pkg/domain-errors"
	"taskflow/pkg/identity"
)

// JWTService validates HS256 access tokens issued by the identity provider
// and, for local development and tests, mints tokens with the same shape.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithClock overrides time.Now for token minting.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewJWTService builds a validator. Empty issuer or audience disables that check.
func NewJWTService(signingKey, issuer, audience string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateAccessToken signs a token carrying the given claims.
func (s *JWTService) GenerateAccessToken(c identity.Claims, expiresIn time.Duration) (string, error) {
	now := s.now()
	mc := jwt.MapClaims{
		"sub": c.Subject,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(expiresIn)),
		"jti": uuid.NewString(),
	}
	if s.issuer != "" {
		mc["iss"] = s.issuer
	}
	if s.audience != "" {
		mc["aud"] = []string{s.audience}
	}
	if len(c.Roles) > 0 {
		mc[identity.ClaimRoles] = c.Roles
	}
	if len(c.Projects) > 0 {
		mc[identity.ClaimProjects] = c.Projects
	}
	if c.Scope != "" {
		mc[identity.ClaimScope] = c.Scope
	}
	if len(c.ProjectRoles) > 0 {
		mc[identity.ClaimProjectRoles] = c.ProjectRoles
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken verifies signature, expiry, issuer and audience and decodes
// the authorization claims.
func (s *JWTService) ValidateToken(tokenString string) (identity.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	parsed, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Claims{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return identity.Claims{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return identity.Claims{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	claims := identity.FromMap(mc)
	if claims.Subject == "" {
		return identity.Claims{}, dErrors.New(dErrors.CodeUnauthorized, "token has no subject")
	}
	return claims, nil
}
