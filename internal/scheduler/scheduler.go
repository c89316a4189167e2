// Package scheduler rings bells for backend schedules whose time has come.
//
// A cron job polls the backend, picks every schedule whose date and time fall
// inside the grace window ending now, and rings it once. Occurrences are keyed
// by schedule id and minute so repeated polls never ring the same slot twice.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ozzus/bell-gateway/internal/backend"
	"ozzus/bell-gateway/internal/domain"
	"ozzus/bell-gateway/internal/lib/datefmt"
	"ozzus/bell-gateway/internal/lib/logger/sl"
)

type ScheduleSource interface {
	ListSchedules(ctx context.Context, sort string, order domain.SortOrder) ([]domain.Schedule, error)
}

type Ringer interface {
	RingSchedule(ctx context.Context, schedule domain.Schedule) (domain.BroadcastResult, error)
}

type Config struct {
	Spec     string
	Grace    time.Duration
	Timezone string
}

type Service struct {
	mu sync.Mutex

	cfg    Config
	source ScheduleSource
	ringer Ringer
	log    *slog.Logger
	loc    *time.Location
	now    func() time.Time

	parser cron.Parser
	c      *cron.Cron

	executed map[string]time.Time
}

func New(cfg Config, source ScheduleSource, ringer Ringer, log *slog.Logger) *Service {
	if strings.TrimSpace(cfg.Spec) == "" {
		cfg.Spec = "@every 1s"
	}
	if cfg.Grace <= 0 {
		cfg.Grace = time.Minute
	}

	s := &Service{
		cfg:      cfg,
		source:   source,
		ringer:   ringer,
		log:      log.With("component", "scheduler"),
		now:      time.Now,
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		executed: map[string]time.Time{},
	}
	s.loc = s.loadLocation()
	return s
}

func (s *Service) loadLocation() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("unknown timezone, falling back to local", "tz", tz, sl.Err(err))
		return time.Local
	}
	return loc
}

// Start registers the poll job and starts cron. It is a no-op when already running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: s.log})),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("invalid scheduler spec %q: %w", s.cfg.Spec, err)
	}

	s.c = c
	s.c.Start()
	s.log.Info("scheduler started", "spec", s.cfg.Spec, "tz", s.loc.String(), "grace", s.cfg.Grace)
	return nil
}

// Stop waits for a running tick to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Tick runs one poll and returns how many schedules were rung.
func (s *Service) Tick(ctx context.Context) int {
	schedules, err := s.source.ListSchedules(ctx, backend.DefaultScheduleSort, domain.SortAsc)
	if err != nil {
		s.log.Error("scheduler poll failed", sl.Err(err))
		return 0
	}

	now := s.now().In(s.loc)
	rung := 0

	for _, sc := range schedules {
		at, err := datefmt.ParseSchedule(sc.ScheduleDate, sc.ScheduleTime, s.loc)
		if err != nil {
			s.log.Warn("invalid schedule format", "schedule_id", sc.ID, sl.Err(err))
			continue
		}

		if at.After(now) || now.Sub(at) > s.cfg.Grace {
			continue
		}

		key := fmt.Sprintf("%d|%s", sc.ID, at.Format("2006-01-02 15:04"))
		if s.markExecuted(key, at) {
			continue
		}

		if _, ok := sc.BellType.Path(); !ok {
			s.log.Warn("invalid bell type", "schedule_id", sc.ID, "bell_type", sc.BellType)
			continue
		}

		if _, err := s.ringer.RingSchedule(ctx, sc); err != nil {
			s.log.Error("scheduled ring failed", "schedule_id", sc.ID, sl.Err(err))
			continue
		}
		rung++
	}

	s.prune(now)
	return rung
}

// markExecuted records key and reports whether it was already present.
func (s *Service) markExecuted(key string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.executed[key]; done {
		return true
	}
	s.executed[key] = at
	return false
}

func (s *Service) prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, at := range s.executed {
		if now.Sub(at) > s.cfg.Grace {
			delete(s.executed, key)
		}
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
