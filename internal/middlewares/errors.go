package middlewares

import (
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"

	"github.com/gin-gonic/gin"
)

// Transport-only kinds, next to the domain taxonomy.
const (
	kindUnauthorized domain.ErrorKind = "unauthorized"
	kindForbidden    domain.ErrorKind = "forbidden"
	kindRateLimited  domain.ErrorKind = "rate_limited"
)

type errorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind"`
}

func abort(c *gin.Context, status int, kind domain.ErrorKind, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Kind: kind})
}
