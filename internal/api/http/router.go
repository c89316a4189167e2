package http

import (
	"log/slog"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"golang.org/x/time/rate"

	"ozzus/bell-gateway/internal/api/http/middleware"
	"ozzus/bell-gateway/internal/domain"
)

type RouterOptions struct {
	Logger         *slog.Logger
	Health         *HealthController
	ManualControl  *ManualControlController
	Dashboard      *DashboardController
	Bells          *BellsController
	AllowedOrigins []string
	TriggerLimiter *rate.Limiter
	Metrics        bool
}

func NewRouter(o RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(o.Logger))
	router.Use(middleware.Logger(o.Logger))
	router.Use(cors.New(corsConfig(o.AllowedOrigins)))

	if o.Metrics {
		newPrometheus().Use(router)
	}

	router.GET("/health", o.Health.Health)
	router.GET("/ready", o.Health.Ready)
	router.GET("/info", o.Health.Info)

	router.GET("/manual_control", o.ManualControl.Ready)
	router.POST("/manual_control",
		middleware.RateLimit(o.TriggerLimiter, domain.ErrorResponse{
			Success: false,
			Message: "Too many trigger requests, slow down.",
		}),
		o.ManualControl.Trigger,
	)

	api := router.Group("/api")
	{
		api.GET("/schedules", o.Dashboard.Schedules)
		api.DELETE("/schedules/:id", o.Dashboard.DeleteSchedule)
		api.GET("/bell_logs", o.Dashboard.BellLogs)
		api.GET("/overview", o.Dashboard.Overview)
		api.GET("/bells/status", o.Bells.Status)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	return cfg
}

func newPrometheus() *ginprometheus.Prometheus {
	p := ginprometheus.NewPrometheus("bellgateway")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		url := c.Request.URL.Path
		for _, p := range c.Params {
			if p.Key == "id" {
				url = strings.Replace(url, p.Value, ":id", 1)
				break
			}
		}
		return url
	}
	return p
}
