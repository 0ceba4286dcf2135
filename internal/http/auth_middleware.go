package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"credential-service/internal/service"
)

const (
	authTokenHeader = "x-auth-token"
	principalKey    = "auth_principal"
)

// AuthMiddleware exige un token de sesion valido en x-auth-token y guarda el sujeto en el contexto.
// No revela que comprobacion fallo.
func AuthMiddleware(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "Server Error"})
			return
		}

		token := strings.TrimSpace(c.GetHeader(authTokenHeader))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "no-token", "msg": "No Token, Authorization Denied"})
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil || claims.Purpose != service.PurposeSession {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "invalid-token", "msg": "Token is Not Valid"})
			return
		}

		c.Set(principalKey, claims.Subject)
		c.Next()
	}
}

// GetPrincipal obtiene el id de cuenta autenticado desde el contexto.
func GetPrincipal(c *gin.Context) (string, bool) {
	val, ok := c.Get(principalKey)
	if !ok {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}
