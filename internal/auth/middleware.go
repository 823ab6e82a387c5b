package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// PlayerKey ключ gin.Context с именем игрока из токена
const PlayerKey = "player"

// Middleware пропускает запрос только с действительным токеном.
// Токен берётся из заголовка "Authorization: Bearer ..." или из параметра
// ?token= (браузерный WebSocket не умеет передавать заголовки).
func (s *Signer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "missing token",
			})
			return
		}

		claims, err := s.Validate(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "invalid token",
			})
			return
		}

		c.Set(PlayerKey, claims.Player)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
