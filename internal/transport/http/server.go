package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/auth"
	"github.com/parleychat/parley-server/internal/config"
	"github.com/parleychat/parley-server/internal/core"
	"github.com/parleychat/parley-server/internal/store"
)

// NewServer builds the HTTP server: health, websocket endpoint and the thin
// REST surface (auth, rooms, device tokens).
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, logger)))

	api := NewAPIHandlers(authService, logger)
	router.POST("/api/register", api.Register)
	router.POST("/api/login", api.Login)

	authorized := router.Group("/api", AuthMiddleware(authService, logger))

	rooms := NewRoomHandlers(hub, st, logger)
	authorized.POST("/rooms", rooms.CreateRoom)
	authorized.GET("/rooms", rooms.ListRooms)
	authorized.POST("/rooms/:id/members", rooms.AddMember)

	tokens := NewTokenHandlers(st, logger)
	authorized.POST("/push-tokens", tokens.Register)
	authorized.DELETE("/push-tokens", tokens.Unregister)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
