// Package http wires the gin router: static UI, REST plumbing around the
// relay core, and the WebSocket signal endpoint.
package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/adapters/signal"
	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/app/orch"
	"github.com/dkeye/Parley/internal/config"
	"github.com/dkeye/Parley/internal/core"
)

// ClientTokenMiddleware mints a stable per-browser token. REST calls are
// correlated by it in logs; identity itself rides on each request.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type Deps struct {
	Cfg      *config.Config
	Orch     *orch.Orchestrator
	Store    core.Store
	Fanout   *app.Fanout
	Gatherer prometheus.Gatherer
}

func SetupRouter(ctx context.Context, d Deps) *gin.Engine {
	if d.Cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if d.Cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(d.Cfg.Secret))
	r.Use(sessions.Sessions("ParleySessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", d.Cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(d.Cfg.StaticPath + "/index.html")
	})

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	log.Info().Str("module", "adapters.http").Str("static", d.Cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	registerAPI(api, d)

	ctrl := signal.NewController(d.Orch, d.Store, d.Cfg)
	api.GET("/ws", func(c *gin.Context) {
		ctrl.Handle(ctx, c)
	})

	return r
}
