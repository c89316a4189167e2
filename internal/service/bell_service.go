package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"ozzus/bell-gateway/internal/domain"
	"ozzus/bell-gateway/internal/lib/logger/sl"
	"ozzus/bell-gateway/internal/repository"
)

var ErrInvalidBellType = errors.New("invalid bell type")

const publishTimeout = 5 * time.Second

type Broadcaster interface {
	BroadcastPath(ctx context.Context, endpoints []domain.Endpoint, path string, timeout time.Duration) (domain.BroadcastResult, error)
}

type Config struct {
	Endpoints []domain.Endpoint
	Timeout   time.Duration
}

type BellService struct {
	trigger Broadcaster
	events  repository.EventRepository
	log     *slog.Logger

	mu  sync.RWMutex
	cfg Config

	publishers conc.WaitGroup
	now        func() time.Time
}

func NewBellService(trigger Broadcaster, events repository.EventRepository, cfg Config, log *slog.Logger) *BellService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if events == nil {
		events = repository.NoopEventRepository{}
	}

	s := &BellService{
		trigger: trigger,
		events:  events,
		log:     log.With("component", "bells"),
		now:     time.Now,
	}
	s.Apply(cfg)
	return s
}

// Apply swaps the endpoint list and timeout for subsequent broadcasts.
// Broadcasts already running keep the snapshot they started with.
func (s *BellService) Apply(cfg Config) {
	eps := make([]domain.Endpoint, len(cfg.Endpoints))
	copy(eps, cfg.Endpoints)

	s.mu.Lock()
	s.cfg = Config{Endpoints: eps, Timeout: cfg.Timeout}
	s.mu.Unlock()

	s.log.Info("bell endpoints configured", "count", len(eps), "timeout", cfg.Timeout)
}

func (s *BellService) snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *BellService) Endpoints() []domain.Endpoint {
	cfg := s.snapshot()
	eps := make([]domain.Endpoint, len(cfg.Endpoints))
	copy(eps, cfg.Endpoints)
	return eps
}

// TriggerManual rings every configured bell at the device root path.
func (s *BellService) TriggerManual(ctx context.Context) (domain.TriggerReport, error) {
	cfg := s.snapshot()

	s.log.Info("triggering direct bell ring", "endpoints", len(cfg.Endpoints))

	res, err := s.trigger.BroadcastPath(ctx, cfg.Endpoints, "", cfg.Timeout)
	if err != nil {
		return domain.TriggerReport{}, fmt.Errorf("manual trigger: %w", err)
	}

	s.logSummary(res)
	s.publish(ctx, domain.RingEvent{Source: domain.RingSourceManual}, res)

	return BuildReport(res), nil
}

// RingSchedule rings every configured bell with the path for the schedule's bell type.
func (s *BellService) RingSchedule(ctx context.Context, schedule domain.Schedule) (domain.BroadcastResult, error) {
	path, ok := schedule.BellType.Path()
	if !ok {
		return domain.BroadcastResult{}, fmt.Errorf("%w %d for schedule %d", ErrInvalidBellType, schedule.BellType, schedule.ID)
	}

	cfg := s.snapshot()
	res, err := s.trigger.BroadcastPath(ctx, cfg.Endpoints, path, cfg.Timeout)
	if err != nil {
		return domain.BroadcastResult{}, fmt.Errorf("ring schedule %d: %w", schedule.ID, err)
	}

	s.log.Info("scheduled bell rang",
		"schedule_id", schedule.ID,
		"name", schedule.Name,
		"bell_type", schedule.BellType,
		"triggered", res.SucceededCount,
		"total", res.TotalCount,
	)
	s.logSummary(res)

	bellType := schedule.BellType
	s.publish(ctx, domain.RingEvent{
		Source:     domain.RingSourceSchedule,
		ScheduleID: schedule.ID,
		Name:       schedule.Name,
		BellType:   &bellType,
	}, res)

	return res, nil
}

// RingCommand rings every configured bell on behalf of a remote requester.
// Without a bell type the device root path is used, as for a manual trigger.
func (s *BellService) RingCommand(ctx context.Context, cmd domain.RingCommand) (domain.BroadcastResult, error) {
	path := ""
	if cmd.BellType != nil {
		var ok bool
		if path, ok = cmd.BellType.Path(); !ok {
			return domain.BroadcastResult{}, fmt.Errorf("%w %d requested by %q", ErrInvalidBellType, *cmd.BellType, cmd.Requester)
		}
	}

	cfg := s.snapshot()
	res, err := s.trigger.BroadcastPath(ctx, cfg.Endpoints, path, cfg.Timeout)
	if err != nil {
		return domain.BroadcastResult{}, fmt.Errorf("ring command from %q: %w", cmd.Requester, err)
	}

	s.logSummary(res)
	s.publish(ctx, domain.RingEvent{
		Source:    domain.RingSourceCommand,
		Name:      cmd.Name,
		BellType:  cmd.BellType,
		Requester: cmd.Requester,
	}, res)

	return res, nil
}

// Wait blocks until pending ring events are published.
func (s *BellService) Wait() {
	s.publishers.Wait()
}

func (s *BellService) HealthCheck(_ context.Context) error {
	if len(s.snapshot().Endpoints) == 0 {
		return errors.New("no bell endpoints configured")
	}
	return nil
}

func (s *BellService) GetStatus() map[string]interface{} {
	cfg := s.snapshot()
	return map[string]interface{}{
		"endpoints": cfg.Endpoints,
		"timeout":   cfg.Timeout.String(),
	}
}

func (s *BellService) logSummary(res domain.BroadcastResult) {
	if len(res.FailureDetails) > 0 {
		s.log.Warn("bell trigger errors", "summary", strings.Join(res.FailureDetails, "; "))
	}
}

func (s *BellService) publish(ctx context.Context, event domain.RingEvent, res domain.BroadcastResult) {
	event.ID = uuid.NewString()
	event.Triggered = res.SucceededCount
	event.Total = res.TotalCount
	event.Failed = res.FailureDetails
	event.OccurredAt = s.now().UTC()

	pubCtx := context.WithoutCancel(ctx)
	s.publishers.Go(func() {
		ctx, cancel := context.WithTimeout(pubCtx, publishTimeout)
		defer cancel()

		if err := s.events.PublishRing(ctx, event); err != nil {
			s.log.Error("failed to publish ring event", "event_id", event.ID, sl.Err(err))
		}
	})
}

// BuildReport maps a broadcast result onto the manual control response.
func BuildReport(res domain.BroadcastResult) domain.TriggerReport {
	total := res.TotalCount

	var message string
	switch {
	case res.SucceededCount == total && total > 0:
		message = fmt.Sprintf("Direct bell trigger sent successfully to all %d bells!", total)
	case res.SucceededCount > 0:
		message = fmt.Sprintf("Direct bell trigger sent to %d/%d bells (some offline).", res.SucceededCount, total)
	default:
		message = fmt.Sprintf("Direct bell trigger attempted on %d bells, but all failed (check connectivity).", total)
	}

	report := domain.TriggerReport{
		Success: res.SucceededCount > 0,
		Message: message,
		Details: domain.TriggerDetails{
			Triggered: res.SucceededCount,
			Total:     total,
		},
	}
	if len(res.FailureDetails) > 0 {
		report.Details.Failed = res.FailureDetails
	}

	return report
}
