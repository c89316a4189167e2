package broadcast

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozzus/bell-gateway/internal/domain"
)

func endpointOf(srv *httptest.Server) domain.Endpoint {
	return domain.Endpoint(strings.TrimPrefix(srv.URL, "http://"))
}

func statusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// refusedEndpoint returns an address nothing listens on.
func refusedEndpoint(t *testing.T) domain.Endpoint {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return domain.Endpoint(addr)
}

// hangingServer never answers until the client gives up or the test ends.
func hangingServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv
}

func assertInvariant(t *testing.T, res domain.BroadcastResult) {
	t.Helper()
	assert.Equal(t, res.TotalCount, res.SucceededCount+len(res.FailureDetails))
	assert.Equal(t, res.SucceededCount == res.TotalCount, len(res.FailureDetails) == 0)
}

func TestBroadcast_EmptyList(t *testing.T) {
	res, err := NewTrigger(nil).Broadcast(context.Background(), nil, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 0, res.TotalCount)
	assert.Equal(t, 0, res.SucceededCount)
	assert.Empty(t, res.FailureDetails)
	assert.NotNil(t, res.FailureDetails)
	assertInvariant(t, res)
}

func TestBroadcast_AllSucceed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	eps := []domain.Endpoint{endpointOf(srv), endpointOf(srv), endpointOf(srv)}
	res, err := NewTrigger(nil).Broadcast(context.Background(), eps, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 3, res.SucceededCount)
	assert.Equal(t, 3, res.TotalCount)
	assert.Empty(t, res.FailureDetails)
	assert.Equal(t, int32(3), hits.Load(), "duplicates are contacted once per occurrence")
	assertInvariant(t, res)
}

func TestBroadcast_OneRefused(t *testing.T) {
	ok := statusServer(t, http.StatusOK)
	refused := refusedEndpoint(t)

	res, err := NewTrigger(nil).Broadcast(context.Background(), []domain.Endpoint{endpointOf(ok), refused}, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SucceededCount)
	assert.Equal(t, 2, res.TotalCount)
	require.Len(t, res.FailureDetails, 1)
	assert.True(t, strings.HasPrefix(res.FailureDetails[0], string(refused)+": "), res.FailureDetails[0])
	assert.Contains(t, res.FailureDetails[0], "refused")
	assertInvariant(t, res)
}

func TestBroadcast_NonOKStatus(t *testing.T) {
	srv := statusServer(t, http.StatusServiceUnavailable)

	res, err := NewTrigger(nil).Broadcast(context.Background(), []domain.Endpoint{endpointOf(srv)}, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 0, res.SucceededCount)
	assert.Equal(t, []string{string(endpointOf(srv)) + ": Status 503"}, res.FailureDetails)
}

func TestBroadcast_TimeoutDoesNotAffectSiblings(t *testing.T) {
	slow := hangingServer(t)
	fast := statusServer(t, http.StatusOK)

	start := time.Now()
	res, err := NewTrigger(nil).Broadcast(context.Background(), []domain.Endpoint{endpointOf(slow), endpointOf(fast)}, 200*time.Millisecond)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SucceededCount)
	require.Len(t, res.FailureDetails, 1)
	assert.Equal(t, string(endpointOf(slow))+": timeout of 200ms exceeded", res.FailureDetails[0])
	assert.Less(t, elapsed, 3*time.Second)
	assertInvariant(t, res)
}

func TestBroadcast_FailureOrderFollowsInput(t *testing.T) {
	ok := statusServer(t, http.StatusOK)
	e500 := statusServer(t, http.StatusInternalServerError)
	e404 := statusServer(t, http.StatusNotFound)
	slow := hangingServer(t)

	eps := []domain.Endpoint{endpointOf(slow), endpointOf(ok), endpointOf(e500), endpointOf(e404)}
	res, err := NewTrigger(nil).Broadcast(context.Background(), eps, 300*time.Millisecond)
	require.NoError(t, err)

	require.Len(t, res.FailureDetails, 3)
	assert.True(t, strings.HasPrefix(res.FailureDetails[0], string(endpointOf(slow))))
	assert.Equal(t, string(endpointOf(e500))+": Status 500", res.FailureDetails[1])
	assert.Equal(t, string(endpointOf(e404))+": Status 404", res.FailureDetails[2])
	assertInvariant(t, res)
}

func TestBroadcast_CallerCancellationDoesNotAbortRequests(t *testing.T) {
	srv := statusServer(t, http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewTrigger(nil).Broadcast(ctx, []domain.Endpoint{endpointOf(srv)}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SucceededCount)
}

func TestBroadcastPath_AppendsDevicePath(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
	}))
	defer srv.Close()

	res, err := NewTrigger(nil).BroadcastPath(context.Background(), []domain.Endpoint{endpointOf(srv)}, "supravatam2", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SucceededCount)
	assert.Equal(t, "/supravatam2", gotPath.Load())
}

func TestBroadcast_InvocationErrors(t *testing.T) {
	trigger := NewTrigger(nil)

	_, err := trigger.Broadcast(context.Background(), []domain.Endpoint{"10.0.0.1"}, 0)
	assert.ErrorIs(t, err, ErrInvalidTimeout)

	_, err = trigger.Broadcast(context.Background(), []domain.Endpoint{"10.0.0.1", "http://10.0.0.2/"}, time.Second)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
	assert.Contains(t, err.Error(), "endpoint #1")
}

type panicTransport struct{}

func (panicTransport) RoundTrip(*http.Request) (*http.Response, error) {
	panic("transport exploded")
}

func TestBroadcast_PanicSurfacesAsOrchestrationError(t *testing.T) {
	trigger := NewTrigger(nil)
	trigger.WithHTTPClient(&http.Client{Transport: panicTransport{}})

	_, err := trigger.Broadcast(context.Background(), []domain.Endpoint{"10.0.0.1"}, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrchestration)
	assert.Contains(t, err.Error(), "transport exploded")
}

func TestAggregate(t *testing.T) {
	res := Aggregate([]domain.EndpointOutcome{
		{Endpoint: "a", Error: "Status 500"},
		{Endpoint: "b", Succeeded: true},
		{Endpoint: "c", Error: "boom"},
	})

	assert.Equal(t, 1, res.SucceededCount)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, []string{"a: Status 500", "c: boom"}, res.FailureDetails)
}
