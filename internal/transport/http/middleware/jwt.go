package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"zeus-insurance/internal/pkg/jwtutil"
	"zeus-insurance/internal/transport/http/response"
)

const (
	ContextOperatorIDKey = "operator_id"
	ContextUsernameKey   = "username"

	bearerPrefix = "Bearer "
)

// AuthJWT guards the back-office routes. Only operator tokens issued by
// AuthService.Login pass.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		switch {
		case header == "":
			unauthorized(c, "missing authorization header")
			return
		case !strings.HasPrefix(header, bearerPrefix):
			unauthorized(c, "invalid authorization scheme")
			return
		}

		claims, err := jwtutil.ParseToken(secret, strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
		if err != nil || claims.OperatorID == 0 {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextOperatorIDKey, claims.OperatorID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, msg)
	c.Abort()
}
