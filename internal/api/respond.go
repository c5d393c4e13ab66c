package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/statusdeck/statusdeck/internal/apperr"
	"github.com/statusdeck/statusdeck/internal/ws"
	"go.uber.org/zap"
)

// Publisher is the broadcast dependency handlers call after a commit.
// *ws.Hub satisfies it; tests substitute a recorder.
type Publisher interface {
	Publish(ev ws.Event)
}

// respondError is the single request-boundary translation from the
// error taxonomy to HTTP. Storage and unknown failures are logged with
// their cause and surfaced as a generic 500; everything else carries its
// own caller-visible message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": apperr.Public(err)})
}
