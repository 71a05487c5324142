package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey 机器人 API Key 请求头, 也接受 ?api_key= 查询参数
const HeaderAPIKey = "X-API-Key"

// APIKeyMiddleware 校验 API Key, 不匹配时 401
func APIKeyMiddleware(keys []string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := ctx.GetHeader(HeaderAPIKey)
		if key == "" {
			key = ctx.Query("api_key")
		}

		if key == "" || !validKey(keys, key) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
			return
		}
		ctx.Next()
	}
}

func validKey(keys []string, key string) bool {
	ok := false
	for _, k := range keys {
		if k != "" && subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			ok = true
		}
	}
	return ok
}
