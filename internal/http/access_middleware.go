package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Authentication failures an Authenticator may return.
var (
	ErrNoCredentials     = errors.New("missing credentials")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrAccountDisabled   = errors.New("account disabled")
)

// Authenticator resolves a bearer token and stores the identity on c.
type Authenticator func(c *gin.Context, token string) error

// AccessAuthMiddleware authenticates bearer tokens. When allowQueryToken is
// set, a ?token= parameter is accepted for clients that cannot send headers
// (browser websockets).
func AccessAuthMiddleware(auth Authenticator, allowQueryToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, errToken := bearerToken(c, allowQueryToken)
		if errToken == nil {
			errToken = auth(c, token)
		}
		if errToken == nil {
			c.Next()
			return
		}

		switch {
		case errors.Is(errToken, ErrNoCredentials):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
		case errors.Is(errToken, ErrInvalidCredential):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		case errors.Is(errToken, ErrAccountDisabled):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		default:
			log.WithError(errToken).Error("access auth middleware error")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authentication service error"})
		}
	}
}

func bearerToken(c *gin.Context, allowQueryToken bool) (string, error) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		if allowQueryToken {
			if token := strings.TrimSpace(c.Query("token")); token != "" {
				return token, nil
			}
		}
		return "", ErrNoCredentials
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return "", ErrInvalidCredential
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}
