package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	authorizationHeaderKey  = "Authorization"
	authorizationTypeBearer = "bearer"
	actorContextKey         = "actor"
)

var errNoSecret = errors.New("jwt secret is not configured")

// OptionalAuth resolves the caller from a bearer token when one is sent.
// Requests without a token continue as guests; a bad token is rejected.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authorizationHeaderKey)
		if header == "" {
			c.Set(actorContextKey, domain.Actor{})
			c.Next()
			return
		}

		fields := strings.Fields(header)
		if len(fields) != 2 || strings.ToLower(fields[0]) != authorizationTypeBearer {
			abort(c, http.StatusUnauthorized, kindUnauthorized, "invalid authorization header format")
			return
		}
		actor, err := ParseToken(fields[1], secret)
		if err != nil {
			abort(c, http.StatusUnauthorized, kindUnauthorized, "invalid or expired token")
			return
		}
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// RequireAdmin must run after OptionalAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c)
		switch {
		case actor.UserID == nil && actor.Role == "":
			abort(c, http.StatusUnauthorized, kindUnauthorized, "authentication required")
		case !actor.IsAdmin():
			abort(c, http.StatusForbidden, kindForbidden, "admin role required")
		default:
			c.Next()
		}
	}
}

// ParseToken validates an HS256 token and reads the user_id and role claims.
func ParseToken(tokenString, secret string) (domain.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if secret == "" {
			return nil, errNoSecret
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Actor{}, errors.New("unexpected claims type")
	}
	var actor domain.Actor
	if raw, ok := claims["user_id"].(float64); ok && raw > 0 {
		id := uint64(raw)
		actor.UserID = &id
	}
	if role, ok := claims["role"].(string); ok {
		actor.Role = strings.ToUpper(role)
	}
	if actor.UserID == nil && actor.Role == "" {
		return domain.Actor{}, errors.New("token carries no identity")
	}
	return actor, nil
}

// ActorFrom returns the caller resolved by OptionalAuth, a guest otherwise.
func ActorFrom(c *gin.Context) domain.Actor {
	actor, _ := actorFromContext(c)
	return actor
}

func actorFromContext(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
