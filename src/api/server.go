// Package api exposes the verification service over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/checks"
	"github.com/realfinder/verifier/src/verification/types"
)

// Verifier produces a decision for one request.
type Verifier interface {
	Verify(ctx context.Context, req types.Request) (*types.Decision, error)
}

// Options configures the router.
type Options struct {
	CORSOrigins []string
	JWTSecret   string
	Limiter     *RateLimiter
	Checks      []checks.Descriptor
	Logger      *zap.Logger
}

// NewRouter builds the gin engine.
func NewRouter(v Verifier, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(RequestLogger(log), Recovery(log))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := handlers{verifier: v, log: log}
	v1 := r.Group("/v1")
	if opts.JWTSecret != "" {
		v1.Use(JWTMiddleware([]byte(opts.JWTSecret)))
	}
	if opts.Limiter != nil {
		v1.Use(RateLimitMiddleware(opts.Limiter))
	}
	{
		v1.POST("/verify/listing", h.verify(types.SubjectListing))
		v1.POST("/verify/broker", h.verify(types.SubjectBroker))
		v1.POST("/verify/property", h.verify(types.SubjectProperty))
		v1.GET("/checks", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"checks": opts.Checks})
		})
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Retry-After"},
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
