package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veilchat/relay/internal/adapters/signal"
	"github.com/veilchat/relay/internal/app"
	"github.com/veilchat/relay/internal/config"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a long-lived opaque token on each browser. It
// carries no identity; it only keys protocol-abuse tracking.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, store *app.Store) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("RelaySessions", cookieStore))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": store.SessionCount()})
	})

	ctl := signal.NewController(cfg, store)
	r.GET("/ws/chat", func(c *gin.Context) {
		// Refuse before the handshake so existing sessions are untouched.
		if store.SessionCount() >= cfg.MaxSessions {
			log.Warn().Str("module", "httpapi").Msg("session cap reached, refusing connection")
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		ctl.HandleChat(ctx, c)
	})

	log.Info().Str("module", "httpapi").Msg("router setup")
	return r
}
