package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// clientKey is the gin context key holding the caller identity.
const clientKey = "client"

// JWTMiddleware accepts HS256 bearer tokens signed with secret and records
// the token subject as the client identity.
func JWTMiddleware(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Error: "missing bearer token", Kind: "unauthorized"})
			return
		}
		tok, err := parser.Parse(h[7:], func(t *jwt.Token) (interface{}, error) { return secret, nil })
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Error: "invalid token", Kind: "unauthorized"})
			return
		}
		if sub, err := tok.Claims.GetSubject(); err == nil && sub != "" {
			c.Set(clientKey, sub)
		}
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("duration", time.Since(start)),
		}
		if client := c.GetString(clientKey); client != "" {
			fields = append(fields, zap.String("client", client))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// Recovery turns handler panics into the internal error envelope.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error("handler panicked", zap.String("path", c.FullPath()), zap.Any("panic", rec))
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{
			Error:     "internal error",
			Kind:      "internal",
			Retryable: true,
		})
	})
}
