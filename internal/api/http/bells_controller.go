package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ozzus/bell-gateway/internal/domain"
)

type EndpointSource interface {
	Endpoints() []domain.Endpoint
}

type ReachabilityProber interface {
	Probe(ctx context.Context, endpoints []domain.Endpoint) []domain.Reachability
}

type BellsController struct {
	endpoints EndpointSource
	prober    ReachabilityProber
}

func NewBellsController(endpoints EndpointSource, prober ReachabilityProber) *BellsController {
	return &BellsController{
		endpoints: endpoints,
		prober:    prober,
	}
}

// Status пингует все настроенные устройства
func (h *BellsController) Status(c *gin.Context) {
	eps := h.endpoints.Endpoints()
	results := h.prober.Probe(c.Request.Context(), eps)

	reachable := 0
	for _, r := range results {
		if r.Reachable {
			reachable++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"bells":     results,
		"reachable": reachable,
		"total":     len(eps),
		"timestamp": time.Now(),
	})
}
