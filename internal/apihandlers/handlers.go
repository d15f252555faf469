package apihandlers

import (
	"net/http"
	"slices"

	"eou/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const defaultReadLimit = 1 << 20

type APIHandler struct {
	App      *app.App
	upgrader websocket.Upgrader
	sockets  socketRegistry
}

func NewAPIHandler(app *app.App) *APIHandler {
	h := &APIHandler{App: app}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// RegisterRoutes mounts the health endpoints and the authenticated socket
// routes on router.
func (h *APIHandler) RegisterRoutes(router gin.IRouter) {
	router.Use(CORS(h.allowedOrigins()))

	router.GET("/", h.RootHandler)
	router.GET("/health", h.HealthHandler)

	v1 := router.Group("/v1", RequireAPIKey(h.App.Config.Auth.APIKey))
	{
		v1.GET("/stream", h.StreamHandler)
		if h.App.EOUService != nil {
			v1.GET("/eou", h.EOUHandler)
		}
	}
}

func (h *APIHandler) allowedOrigins() []string {
	if h.App == nil || h.App.Config == nil {
		return nil
	}
	return h.App.Config.Server.AllowedOrigins
}

func (h *APIHandler) readLimit() int64 {
	if h.App == nil || h.App.Config == nil || h.App.Config.Server.ReadLimitBytes <= 0 {
		return defaultReadLimit
	}
	return h.App.Config.Server.ReadLimitBytes
}

// checkOrigin accepts non-browser clients and any listed origin.
func (h *APIHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || originAllowed(h.allowedOrigins(), origin)
}

func originAllowed(allowed []string, origin string) bool {
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}
