package apihandlers

import (
	"crypto/subtle"

	"eou/internal/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequireAPIKey rejects requests whose api_key query parameter does not
// match expected. It runs before the upgrade so refused clients get a
// plain 403.
func RequireAPIKey(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := checkAPIKey(expected, c.Query("api_key")); err != nil {
			log.WithFields(log.Fields{
				"ip":   c.ClientIP(),
				"path": c.Request.URL.Path,
			}).WithError(err).Warn("Rejected connection")
			Forbidden(c, "Invalid API key")
			return
		}
		c.Next()
	}
}

// checkAPIKey returns models.ErrUnauthorized unless got matches a
// configured key.
func checkAPIKey(expected, got string) error {
	if expected == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return models.ErrUnauthorized
	}
	return nil
}
