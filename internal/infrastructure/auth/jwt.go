package auth

import (
	"errors"
	"time"

	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const TokenTypeAccess TokenType = "access"

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrTokenNotYetValid  = errors.New("token is not yet valid")
	ErrInvalidTokenType  = errors.New("invalid token type")
	ErrInvalidClaims     = errors.New("invalid token claims")
	ErrMissingCompanyID  = errors.New("missing company_id in claims")
	ErrMissingActorID    = errors.New("missing user_id in claims")
	ErrTokenRevoked      = errors.New("token has been revoked")
	ErrSecretNotProvided = errors.New("jwt secret is empty")
)

// claimErrors are returned by Claims.Validate and surface unchanged
var claimErrors = []error{ErrInvalidTokenType, ErrMissingCompanyID, ErrMissingActorID, ErrInvalidClaims}

// Claims identify the caller: a user acting for one company. The identity
// service issues them; settlement only verifies.
type Claims struct {
	jwt.RegisteredClaims
	CompanyID string    `json:"company_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	BranchID  string    `json:"branch_id,omitempty"`
	TokenType TokenType `json:"token_type"`
}

// Validate runs after the registered claims checks during parsing
func (c *Claims) Validate() error {
	switch {
	case c.TokenType != TokenTypeAccess:
		return ErrInvalidTokenType
	case c.CompanyID == "":
		return ErrMissingCompanyID
	case c.UserID == "":
		return ErrMissingActorID
	}
	if _, err := uuid.Parse(c.CompanyID); err != nil {
		return ErrInvalidClaims
	}
	if _, err := uuid.Parse(c.UserID); err != nil {
		return ErrInvalidClaims
	}
	return nil
}

func (c *Claims) CompanyUUID() uuid.UUID { return uuid.MustParse(c.CompanyID) }

func (c *Claims) ActorUUID() uuid.UUID { return uuid.MustParse(c.UserID) }

// IssuedAtTime is zero when the token carries no iat
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// RemainingTTL is how long the token stays valid, never negative
func (c *Claims) RemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(time.Until(c.ExpiresAt.Time), 0)
}

// JWTService signs and verifies HS256 access tokens
type JWTService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	parser *jwt.Parser
}

func NewJWTService(cfg config.JWTConfig) *JWTService {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &JWTService{
		secret: []byte(cfg.Secret),
		ttl:    cfg.AccessTokenExpiration,
		issuer: cfg.Issuer,
		parser: jwt.NewParser(opts...),
	}
}

type GenerateTokenInput struct {
	CompanyID uuid.UUID
	UserID    uuid.UUID
	BranchID  *uuid.UUID
	Username  string
}

// GenerateAccessToken signs a token for local use: cmd/devtoken and tests
func (s *JWTService) GenerateAccessToken(in GenerateTokenInput) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrSecretNotProvided
	}
	now := time.Now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   in.UserID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expires),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		CompanyID: in.CompanyID.String(),
		UserID:    in.UserID.String(),
		Username:  in.Username,
		TokenType: TokenTypeAccess,
	}
	if in.BranchID != nil {
		claims.BranchID = in.BranchID.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ValidateAccessToken returns the claims of a valid access token. Failures
// map onto the Err values of this package.
func (s *JWTService) ValidateAccessToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return s.secret, nil })
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotYetValid
	}
	for _, ce := range claimErrors {
		if errors.Is(err, ce) {
			return nil, ce
		}
	}
	return nil, ErrInvalidToken
}
