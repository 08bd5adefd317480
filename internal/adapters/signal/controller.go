package signal

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/veilchat/relay/internal/app"
	"github.com/veilchat/relay/internal/config"
	"github.com/veilchat/relay/internal/core"
)

// Controller upgrades HTTP requests into chat channels and runs the per-
// connection read/write pumps.
type Controller struct {
	cfg      *config.Config
	store    *app.Store
	strikes  *StrikeLimiter
	upgrader websocket.Upgrader
}

func NewController(cfg *config.Config, store *app.Store) *Controller {
	return &Controller{
		cfg:     cfg,
		store:   store,
		strikes: NewStrikeLimiter(cfg.StrikeLimit, cfg.StrikeWindow),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.AllowedOrigins),
		},
	}
}

// originChecker admits everything when no allow-list is configured,
// otherwise requires an exact Origin match. Requests without an Origin
// header (non-browser clients) always pass.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleChat upgrades the request and starts the connection actor. The
// client token from the cookie middleware keys abuse tracking across
// reconnects; the session id is fresh per channel.
func (ctl *Controller) HandleChat(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWSConn(ws, ctl.cfg.SendQueueDepth)
	sid := core.SessionID(uuid.NewString())
	ctl.store.Connect(sid, conn)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, token, conn)
}
