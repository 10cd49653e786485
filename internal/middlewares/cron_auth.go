package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CronAuth checks the shared scheduler secret. An empty secret leaves the
// endpoint open and says so in the log.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			log.Ctx(c.Request.Context()).Warn().Msg("CRON_SECRET is not set, cron endpoint is unauthenticated")
			c.Next()
			return
		}
		token, found := strings.CutPrefix(c.GetHeader(authorizationHeaderKey), "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			abort(c, http.StatusUnauthorized, kindUnauthorized, "unauthorized")
			return
		}
		c.Next()
	}
}
