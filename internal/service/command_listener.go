package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"ozzus/bell-gateway/internal/domain"
	"ozzus/bell-gateway/internal/lib/logger/sl"
	"ozzus/bell-gateway/internal/repository/kafka"
)

type CommandSource interface {
	ReadEvent(ctx context.Context, v interface{}) (kafkago.Message, error)
	CommitMessage(ctx context.Context, msg kafkago.Message) error
}

// CommandListener rings bells on request from a Kafka topic.
type CommandListener struct {
	source CommandSource
	bells  *BellService
	log    *slog.Logger
}

func NewCommandListener(source CommandSource, bells *BellService, log *slog.Logger) *CommandListener {
	return &CommandListener{
		source: source,
		bells:  bells,
		log:    log.With("component", "commands"),
	}
}

func (l *CommandListener) Run(ctx context.Context) error {
	l.log.Info("command listener started")

	for {
		var cmd domain.RingCommand
		msg, err := l.source.ReadEvent(ctx, &cmd)
		if err != nil {
			if ctx.Err() != nil {
				l.log.Info("command listener stopped")
				return nil
			}
			if !errors.Is(err, kafka.ErrDecode) {
				l.log.Error("failed to read ring command", sl.Err(err))
				if !sleepCtx(ctx, time.Second) {
					return nil
				}
				continue
			}
			l.log.Warn("skipping malformed ring command", sl.Err(err))
		} else {
			l.handle(ctx, cmd)
		}

		if err := l.source.CommitMessage(ctx, msg); err != nil && ctx.Err() == nil {
			l.log.Error("failed to commit ring command", "offset", msg.Offset, sl.Err(err))
		}
	}
}

func (l *CommandListener) handle(ctx context.Context, cmd domain.RingCommand) {
	l.log.Info("ring command received", "requester", cmd.Requester, "name", cmd.Name)

	res, err := l.bells.RingCommand(ctx, cmd)
	if err != nil {
		l.log.Error("ring command failed", "requester", cmd.Requester, sl.Err(err))
		return
	}
	l.log.Info("ring command done",
		"requester", cmd.Requester,
		"triggered", res.SucceededCount,
		"total", res.TotalCount,
	)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
