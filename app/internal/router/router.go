package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/marketconnect/llm-council/app/internal/config"
	"github.com/marketconnect/llm-council/app/internal/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes are the handler groups mounted under /api.
type Routes interface {
	RegisterRoutes(router *gin.RouterGroup)
}

func Setup(cfg *config.Config, gatherer prometheus.Gatherer, routes ...Routes) *gin.Engine {
	if !cfg.IsDev && !cfg.IsDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	origins := cfg.HTTP.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", handlers.PrincipalHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(handlers.Principal())

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	for _, rt := range routes {
		rt.RegisterRoutes(api)
	}

	return r
}
