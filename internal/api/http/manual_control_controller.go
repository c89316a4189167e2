package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ozzus/bell-gateway/internal/domain"
	"ozzus/bell-gateway/internal/lib/logger/sl"
)

type ManualTrigger interface {
	TriggerManual(ctx context.Context) (domain.TriggerReport, error)
}

type ManualControlController struct {
	bells ManualTrigger
	log   *slog.Logger
}

func NewManualControlController(bells ManualTrigger, log *slog.Logger) *ManualControlController {
	return &ManualControlController{
		bells: bells,
		log:   log,
	}
}

// Ready сообщает, что endpoint готов принимать POST
func (h *ManualControlController) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Manual control endpoint ready. Use POST for emergency bell.",
	})
}

// Trigger рассылает звонок на все устройства. Частичный отказ остаётся 200.
func (h *ManualControlController) Trigger(c *gin.Context) {
	report, err := h.bells.TriggerManual(c.Request.Context())
	if err != nil {
		h.log.Error("unexpected error during manual trigger", sl.Err(err))
		c.JSON(http.StatusInternalServerError, domain.ErrorResponse{
			Success: false,
			Message: "Unexpected error: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, report)
}
