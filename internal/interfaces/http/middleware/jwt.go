package middleware

import (
	"errors"
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/auth"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey    = "jwt_claims"
	JWTCompanyIDKey = "jwt_company_id"
	JWTActorIDKey   = "jwt_actor_id"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
)

// TokenValidator validates an access token
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	Validator TokenValidator
	// Revocations is optional; without it tokens are valid until expiry
	Revocations auth.RevocationChecker
	// SkipPaths don't require authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// DefaultJWTConfig returns default JWT middleware configuration
func DefaultJWTConfig(validator TokenValidator) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		Validator: validator,
		SkipPaths: []string{"/health", "/ready", "/metrics"},
		Logger:    zap.NewNop(),
	}
}

// JWTAuthMiddlewareWithConfig authenticates the bearer token and binds the
// company and actor it names to the request. Every ledger operation is
// scoped to that company.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "missing authorization header")
			return
		}
		tokenString, ok := strings.CutPrefix(authHeader, BearerPrefix)
		if !ok || tokenString == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "invalid authorization header format")
			return
		}

		claims, err := cfg.Validator.ValidateAccessToken(tokenString)
		if err != nil {
			handleAuthError(c, cfg, err, "token validation failed")
			return
		}

		if revoked, reason := isRevoked(c, cfg, claims); revoked {
			handleAuthError(c, cfg, auth.ErrTokenRevoked, reason)
			return
		}

		companyID := claims.CompanyUUID()
		actorID := claims.ActorUUID()
		c.Set(JWTClaimsKey, claims)
		c.Set(JWTCompanyIDKey, companyID)
		c.Set(JWTActorIDKey, actorID)

		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, log = logger.WithCompanyID(ctx, log, companyID.String())
		ctx, _ = logger.WithActorID(ctx, log, actorID.String())
		ctx = shared.WithActor(ctx, actorID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// isRevoked fails open when the revocation backend is unavailable
func isRevoked(c *gin.Context, cfg JWTMiddlewareConfig, claims *auth.Claims) (bool, string) {
	if cfg.Revocations == nil {
		return false, ""
	}
	ctx := c.Request.Context()

	if claims.ID != "" {
		revoked, err := cfg.Revocations.TokenRevoked(ctx, claims.ID)
		if err != nil {
			cfg.Logger.Error("Token revocation check failed", zap.String("jti", claims.ID), zap.Error(err))
		} else if revoked {
			return true, "token has been revoked"
		}
	}

	revoked, err := cfg.Revocations.UserRevokedSince(ctx, claims.UserID, claims.IssuedAtTime())
	if err != nil {
		cfg.Logger.Error("User revocation check failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return false, ""
	}
	if revoked {
		return true, "user session has been invalidated"
	}
	return false, ""
}

func handleAuthError(c *gin.Context, cfg JWTMiddlewareConfig, err error, reason string) {
	cfg.Logger.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
	)

	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		code, message = dto.ErrCodeTokenRevoked, "Token has been revoked"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidTokenType),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingCompanyID),
		errors.Is(err, auth.ErrMissingActorID):
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	abortWithError(c, code, message)
}

// abortWithError writes the standard error envelope and stops the chain
func abortWithError(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code),
		dto.Fail(code, message, c.GetString(RequestIDKey)))
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetCompanyID returns the authenticated company, or uuid.Nil
func GetCompanyID(c *gin.Context) uuid.UUID {
	return uuidValue(c, JWTCompanyIDKey)
}

// GetActorID returns the authenticated user, or uuid.Nil
func GetActorID(c *gin.Context) uuid.UUID {
	return uuidValue(c, JWTActorIDKey)
}

func uuidValue(c *gin.Context, key string) uuid.UUID {
	if v, ok := c.Get(key); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
