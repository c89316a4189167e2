package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozzus/bell-gateway/internal/domain"
	"ozzus/bell-gateway/internal/repository/kafka"
)

type queuedRead struct {
	cmd domain.RingCommand
	err error
}

// fakeSource replays queued reads, then blocks until ctx is cancelled.
type fakeSource struct {
	mu        sync.Mutex
	reads     []queuedRead
	committed []int64
	offset    int64
	drained   chan struct{}
}

func (f *fakeSource) ReadEvent(ctx context.Context, v interface{}) (kafkago.Message, error) {
	f.mu.Lock()
	if len(f.reads) == 0 {
		f.mu.Unlock()
		close(f.drained)
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	next := f.reads[0]
	f.reads = f.reads[1:]
	f.offset++
	msg := kafkago.Message{Offset: f.offset}
	f.mu.Unlock()

	if next.err != nil {
		return msg, next.err
	}
	*(v.(*domain.RingCommand)) = next.cmd
	return msg, nil
}

func (f *fakeSource) CommitMessage(_ context.Context, msg kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msg.Offset)
	return nil
}

func TestCommandListener_Run(t *testing.T) {
	normal := domain.BellTypeNormal
	src := &fakeSource{
		drained: make(chan struct{}),
		reads: []queuedRead{
			{cmd: domain.RingCommand{Requester: "ops"}},
			{err: fmt.Errorf("%w at offset 2: bad json", kafka.ErrDecode)},
			{cmd: domain.RingCommand{Name: "Assembly", BellType: &normal, Requester: "office"}},
		},
	}
	b := &fakeBroadcaster{result: domain.BroadcastResult{SucceededCount: 1, TotalCount: 1, FailureDetails: []string{}}}
	ev := &fakeEvents{}
	bells := NewBellService(b, ev, Config{Endpoints: []domain.Endpoint{"10.0.0.1"}}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewCommandListener(src, bells, discardLogger()).Run(ctx) }()

	<-src.drained
	cancel()
	require.NoError(t, <-done)

	require.Len(t, b.calls, 2)
	assert.Equal(t, "", b.calls[0].path)
	assert.Equal(t, "normal", b.calls[1].path)
	assert.Equal(t, []int64{1, 2, 3}, src.committed)

	bells.Wait()
	require.Len(t, ev.events, 2)
	for _, e := range ev.events {
		assert.Equal(t, domain.RingSourceCommand, e.Source)
		assert.Zero(t, e.ScheduleID)
	}
	assert.Equal(t, "ops", ev.events[0].Requester)
	assert.Nil(t, ev.events[0].BellType)
	assert.Equal(t, "office", ev.events[1].Requester)
	assert.Equal(t, "Assembly", ev.events[1].Name)
	require.NotNil(t, ev.events[1].BellType)
	assert.Equal(t, domain.BellTypeNormal, *ev.events[1].BellType)
}

func TestCommandListener_StopsOnCancelledContext(t *testing.T) {
	src := &fakeSource{drained: make(chan struct{})}
	bells := NewBellService(&fakeBroadcaster{}, nil, Config{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewCommandListener(src, bells, discardLogger()).Run(ctx)
	assert.NoError(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
