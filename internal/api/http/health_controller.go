package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ozzus/bell-gateway/internal/domain"
)

type BellStatus interface {
	HealthCheck(ctx context.Context) error
	GetStatus() map[string]interface{}
}

type BackendPinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	bells    BellStatus
	backend  BackendPinger
	instance string
	version  string
}

func NewHealthController(bells BellStatus, backend BackendPinger, instance, version string) *HealthController {
	return &HealthController{
		bells:    bells,
		backend:  backend,
		instance: instance,
		version:  version,
	}
}

// Health handler проверяет, что процесс жив
func (h *HealthController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, domain.HealthResponse{
		Status:    domain.HealthStatusHealthy,
		Timestamp: time.Now(),
		Instance:  h.instance,
		Message:   "Gateway is running",
	})
}

// Ready handler для проверки готовности: есть устройства и backend отвечает
func (h *HealthController) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	components := []domain.ComponentHealth{
		component("bells", h.bells.HealthCheck(ctx)),
		component("backend", h.backend.Ping(ctx)),
	}

	status := http.StatusOK
	overall := domain.HealthStatusHealthy
	for _, comp := range components {
		if comp.Status != string(domain.HealthStatusHealthy) {
			status = http.StatusServiceUnavailable
			overall = domain.HealthStatusUnhealthy
		}
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"instance":   h.instance,
		"components": components,
		"timestamp":  time.Now(),
	})
}

// Info handler для получения общей информации о шлюзе
func (h *HealthController) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"instance":  h.instance,
		"version":   h.version,
		"bells":     h.bells.GetStatus(),
		"timestamp": time.Now(),
	})
}

func component(name string, err error) domain.ComponentHealth {
	if err != nil {
		return domain.ComponentHealth{Name: name, Status: string(domain.HealthStatusUnhealthy), Message: err.Error()}
	}
	return domain.ComponentHealth{Name: name, Status: string(domain.HealthStatusHealthy)}
}
