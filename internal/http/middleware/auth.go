package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/quest-backend/internal/http/response"
	"github.com/yungbote/quest-backend/internal/locale"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/ctxutil"
	"github.com/yungbote/quest-backend/internal/platform/logger"
	"github.com/yungbote/quest-backend/internal/services"
)

const (
	defaultAPIKeyHeader = "X-API-KEY"
	headerUserLocale    = "X-User-Locale"
)

var errMissingIdentity = errors.New("missing or invalid identity")

type AuthMiddleware struct {
	log         *logger.Logger
	cfg         config.AuthConfig
	userService services.UserService
	catalog     *locale.Catalog
}

func NewAuthMiddleware(log *logger.Logger, cfg config.AuthConfig, userService services.UserService, catalog *locale.Catalog) *AuthMiddleware {
	if strings.TrimSpace(cfg.APIKeyHeader) == "" {
		cfg.APIKeyHeader = defaultAPIKeyHeader
	}
	return &AuthMiddleware{
		log:         log.With("Middleware", "AuthMiddleware"),
		cfg:         cfg,
		userService: userService,
		catalog:     catalog,
	}
}

// RequireAuth checks the API key, resolves the caller by email and attaches
// the request data used by the handlers.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.cfg.APIKeyDisabled && !am.validAPIKey(c.GetHeader(am.cfg.APIKeyHeader)) {
			response.AbortError(c, http.StatusUnauthorized, response.CodeUnauthorized, errors.New("invalid api key"))
			return
		}
		email, err := am.email(c)
		if err != nil {
			am.log.Debug("Identity rejected", "error", err)
			response.AbortError(c, http.StatusUnauthorized, response.CodeUnauthorized, errMissingIdentity)
			return
		}
		loc := am.locale(c)
		info, err := am.userService.Resolve(dbctx.Context{Ctx: c.Request.Context()}, email, loc)
		if err != nil {
			response.RespondAppError(c, err)
			c.Abort()
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			UserID: info.UserID,
			Email:  info.Email,
			Locale: loc,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (am *AuthMiddleware) validAPIKey(got string) bool {
	got = strings.TrimSpace(got)
	if got == "" {
		return false
	}
	if am.cfg.APIKeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(am.cfg.APIKeyHash), []byte(got)) == nil
	}
	if am.cfg.APIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(am.cfg.APIKey)) == 1
}

func (am *AuthMiddleware) email(c *gin.Context) (string, error) {
	if token := bearerToken(c); token != "" && am.cfg.JWTSecret != "" {
		return am.emailFromToken(token)
	}
	if am.cfg.EmailHeader != "" {
		if v := strings.TrimSpace(c.GetHeader(am.cfg.EmailHeader)); v != "" {
			return v, nil
		}
	}
	return "", errMissingIdentity
}

type emailClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (am *AuthMiddleware) emailFromToken(raw string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if am.cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(am.cfg.JWTIssuer))
	}
	var claims emailClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(am.cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if strings.TrimSpace(claims.Email) == "" {
		return "", errors.New("token has no email claim")
	}
	return claims.Email, nil
}

func (am *AuthMiddleware) locale(c *gin.Context) string {
	if am.catalog == nil {
		return locale.Normalize(c.GetHeader(headerUserLocale))
	}
	if v := locale.Normalize(c.GetHeader(headerUserLocale)); v != "" && am.catalog.Supports(v) {
		return v
	}
	if v := am.catalog.FromAcceptLanguage(c.GetHeader("Accept-Language")); v != "" {
		return v
	}
	return am.catalog.Fallback()
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
