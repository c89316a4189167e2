package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"ozzus/bell-gateway/internal/backend"
	"ozzus/bell-gateway/internal/domain"
	"ozzus/bell-gateway/internal/lib/datefmt"
	"ozzus/bell-gateway/internal/lib/logger/sl"
)

type ScheduleBackend interface {
	ListSchedules(ctx context.Context, sort string, order domain.SortOrder) ([]domain.Schedule, error)
	DeleteSchedule(ctx context.Context, id int) (*domain.DeleteResult, error)
	ListBellLogs(ctx context.Context, sort string, order domain.SortOrder) ([]domain.BellLog, error)
}

type DashboardController struct {
	backend ScheduleBackend
	log     *slog.Logger
}

func NewDashboardController(backend ScheduleBackend, log *slog.Logger) *DashboardController {
	return &DashboardController{
		backend: backend,
		log:     log,
	}
}

// Schedules returns schedules sorted as requested, with display dates.
func (h *DashboardController) Schedules(c *gin.Context) {
	sortKey, sortOrder := backend.ScheduleQuery(c.Query("sort"), c.Query("order"))

	schedules, err := h.listSchedules(c.Request.Context(), sortKey, sortOrder)
	if err != nil {
		h.log.Error("error fetching schedules", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch schedules."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"schedules": schedules,
		"sortKey":   sortKey,
		"sortOrder": sortOrder,
	})
}

// DeleteSchedule deletes one schedule and returns the refreshed list.
func (h *DashboardController) DeleteSchedule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid schedule ID"})
		return
	}

	ctx := c.Request.Context()
	result, err := h.backend.DeleteSchedule(ctx, id)
	if err != nil {
		h.log.Error("error deleting schedule", "schedule_id", id, sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete schedule."})
		return
	}

	sortKey, sortOrder := backend.ScheduleQuery(c.Query("sort"), c.Query("order"))
	schedules, err := h.listSchedules(ctx, sortKey, sortOrder)
	if err != nil {
		h.log.Error("error fetching updated schedules", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete schedule."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   result.Message,
		"schedules": schedules,
	})
}

// BellLogs returns the history of rung bells.
func (h *DashboardController) BellLogs(c *gin.Context) {
	sortKey, sortOrder := backend.BellLogQuery(c.Query("sort"), c.Query("order"))

	logs, err := h.backend.ListBellLogs(c.Request.Context(), sortKey, sortOrder)
	if err != nil {
		h.log.Error("error fetching bell logs", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Unable to load bell logs."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":      nonNil(logs),
		"sortKey":   sortKey,
		"sortOrder": sortOrder,
	})
}

// Overview fetches schedules and bell logs concurrently with default sorting.
func (h *DashboardController) Overview(c *gin.Context) {
	var (
		schedules []domain.Schedule
		logs      []domain.BellLog
	)

	g, gctx := errgroup.WithContext(c.Request.Context())

	g.Go(func() error {
		var err error
		sortKey, sortOrder := backend.ScheduleQuery("", "")
		schedules, err = h.listSchedules(gctx, sortKey, sortOrder)
		return err
	})

	g.Go(func() error {
		var err error
		sortKey, sortOrder := backend.BellLogQuery("", "")
		logs, err = h.backend.ListBellLogs(gctx, sortKey, sortOrder)
		return err
	})

	if err := g.Wait(); err != nil {
		h.log.Error("error fetching overview", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load overview."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"schedules": schedules,
		"logs":      nonNil(logs),
	})
}

func (h *DashboardController) listSchedules(ctx context.Context, sortKey string, sortOrder domain.SortOrder) ([]domain.Schedule, error) {
	schedules, err := h.backend.ListSchedules(ctx, sortKey, sortOrder)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Schedule, len(schedules))
	for i, s := range schedules {
		display := datefmt.FormatScheduleDate(s.ScheduleDate, s.ScheduleTime)
		s.DisplayDate = display.Date
		s.DisplayTime = display.Time
		out[i] = s
	}
	return out, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
