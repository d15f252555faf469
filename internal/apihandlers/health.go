package apihandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RootHandler answers probes of "/" with a not-found notice that echoes the
// caller's address and agent.
func (h *APIHandler) RootHandler(c *gin.Context) {
	ip := c.GetHeader("X-Forwarded-For")
	if ip == "" {
		ip = c.RemoteIP()
	}
	agent := c.GetHeader("User-Agent")
	if agent == "" {
		agent = "Unknown"
	}
	log.WithFields(log.Fields{"ip": ip, "agent": agent}).Warn("Request to root path")

	c.JSON(http.StatusOK, gin.H{
		"detail":           "Not Found",
		"detected_ip":      ip,
		"detected_agent":   agent,
		"Intruder message": "IP And user agent have been reported to admin",
	})
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if svc := h.App.EmbeddingService; svc != nil {
		resp["embedding_provider"] = svc.Name()
		resp["model"] = svc.ModelName()
	}
	if h.App.PathService != nil {
		resp["path_strategy"] = h.App.PathService.Strategy()
	}
	if h.App.EOUService != nil {
		resp["eou_backend"] = h.App.EOUService.Backend()
	}
	c.JSON(http.StatusOK, resp)
}
