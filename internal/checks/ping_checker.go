package checks

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-ping/ping"
	"github.com/sourcegraph/conc/iter"

	"ozzus/bell-gateway/internal/domain"
)

type pingFunc func(ctx context.Context, host string) domain.Reachability

// PingChecker reports ICMP reachability of bell devices.
type PingChecker struct {
	timeout    time.Duration
	count      int
	privileged bool
	ping       pingFunc
}

func NewPingChecker(timeout time.Duration, count int, privileged bool) *PingChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if count <= 0 {
		count = 3
	}

	p := &PingChecker{
		timeout:    timeout,
		count:      count,
		privileged: privileged,
	}
	p.ping = p.icmp
	return p
}

// Probe pings every endpoint's host and returns results in input order.
func (p *PingChecker) Probe(ctx context.Context, endpoints []domain.Endpoint) []domain.Reachability {
	return iter.Map(endpoints, func(ep *domain.Endpoint) domain.Reachability {
		host, err := hostOf(*ep)
		if err != nil {
			return domain.Reachability{Endpoint: *ep, Error: err.Error()}
		}

		r := p.ping(ctx, host)
		r.Endpoint = *ep
		return r
	})
}

func (p *PingChecker) icmp(ctx context.Context, host string) domain.Reachability {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return domain.Reachability{Error: err.Error()}
	}

	pinger.Count = p.count
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(p.privileged)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-stop:
		}
	}()

	if err := pinger.Run(); err != nil {
		return domain.Reachability{Error: err.Error()}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return domain.Reachability{Error: "no packets received"}
	}

	return domain.Reachability{
		Reachable: true,
		RTTMillis: float64(stats.AvgRtt.Microseconds()) / 1000.0,
	}
}

func hostOf(ep domain.Endpoint) (string, error) {
	raw := strings.TrimSpace(string(ep))
	if raw == "" {
		return "", errors.New("empty endpoint")
	}

	host, _, err := net.SplitHostPort(raw)
	if err != nil {
		// no port
		return strings.Trim(raw, "[]"), nil
	}
	if host == "" {
		return "", errors.New("endpoint has no host")
	}
	return host, nil
}
