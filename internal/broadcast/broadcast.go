// Package broadcast sends one request to every bell device at once and
// folds the per-device outcomes into a single result.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sourcegraph/conc"

	"ozzus/bell-gateway/internal/domain"
)

var (
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	ErrInvalidTimeout  = errors.New("invalid timeout")
	ErrOrchestration   = errors.New("broadcast orchestration failed")
)

// maxDrainBytes bounds how much of a device response body is read before closing.
const maxDrainBytes = 64 << 10

type Trigger struct {
	client *http.Client
	log    *slog.Logger
}

func NewTrigger(log *slog.Logger) *Trigger {
	if log == nil {
		log = slog.Default()
	}

	return &Trigger{
		client: &http.Client{},
		log:    log.With("component", "broadcast"),
	}
}

// WithHTTPClient overrides the default http.Client. Primarily useful for testing.
func (t *Trigger) WithHTTPClient(client *http.Client) {
	if client != nil {
		t.client = client
	}
}

// Broadcast issues GET http://<endpoint>/ to every endpoint concurrently.
func (t *Trigger) Broadcast(ctx context.Context, endpoints []domain.Endpoint, timeout time.Duration) (domain.BroadcastResult, error) {
	return t.BroadcastPath(ctx, endpoints, "", timeout)
}

// BroadcastPath is Broadcast with a device path appended to every URL.
//
// Each request carries its own timeout. Cancelling ctx does not abort requests
// that are already in flight; the call always waits for every endpoint to
// reach a terminal outcome.
func (t *Trigger) BroadcastPath(ctx context.Context, endpoints []domain.Endpoint, path string, timeout time.Duration) (domain.BroadcastResult, error) {
	if timeout <= 0 {
		return domain.BroadcastResult{}, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	if err := ValidateEndpoints(endpoints); err != nil {
		return domain.BroadcastResult{}, err
	}

	outcomes := make([]domain.EndpointOutcome, len(endpoints))
	reqCtx := context.WithoutCancel(ctx)

	var wg conc.WaitGroup
	for i, ep := range endpoints {
		i, ep := i, ep
		wg.Go(func() {
			outcomes[i] = t.contact(reqCtx, ep, deviceURL(ep, path), timeout)
		})
	}

	if recovered := wg.WaitAndRecover(); recovered != nil {
		return domain.BroadcastResult{}, fmt.Errorf("%w: %w", ErrOrchestration, recovered.AsError())
	}

	return Aggregate(outcomes), nil
}

func (t *Trigger) contact(ctx context.Context, ep domain.Endpoint, target string, timeout time.Duration) domain.EndpointOutcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return t.failed(ep, err.Error())
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return t.failed(ep, describeError(err, timeout))
	}
	defer resp.Body.Close()

	// Ensure body is read to allow connection reuse
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode != http.StatusOK {
		t.log.Warn("device answered with unexpected status", "endpoint", ep, "status", resp.StatusCode)
		return domain.EndpointOutcome{Endpoint: ep, Error: fmt.Sprintf("Status %d", resp.StatusCode)}
	}

	t.log.Debug("device triggered", "endpoint", ep, "status", resp.Status)
	return domain.EndpointOutcome{Endpoint: ep, Succeeded: true}
}

func (t *Trigger) failed(ep domain.Endpoint, msg string) domain.EndpointOutcome {
	t.log.Warn("device unreachable", "endpoint", ep, "error", msg)
	return domain.EndpointOutcome{Endpoint: ep, Error: msg}
}

func describeError(err error, timeout time.Duration) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("timeout of %dms exceeded", timeout.Milliseconds())
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}

	return err.Error()
}

// Aggregate folds outcomes into a result, keeping failures in input order.
func Aggregate(outcomes []domain.EndpointOutcome) domain.BroadcastResult {
	result := domain.BroadcastResult{
		TotalCount:     len(outcomes),
		FailureDetails: make([]string, 0),
	}

	for _, o := range outcomes {
		if o.Succeeded {
			result.SucceededCount++
			continue
		}
		result.FailureDetails = append(result.FailureDetails, fmt.Sprintf("%s: %s", o.Endpoint, o.Error))
	}

	return result
}
