package broadcast

import (
	"fmt"
	"net/url"
	"strings"

	"ozzus/bell-gateway/internal/domain"
)

// ValidateEndpoint checks that ep is a bare host or host:port.
func ValidateEndpoint(ep domain.Endpoint) error {
	raw := string(ep)
	if raw == "" {
		return fmt.Errorf("%w: empty endpoint", ErrInvalidEndpoint)
	}

	if strings.TrimSpace(raw) != raw || strings.ContainsAny(raw, " \t\r\n") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidEndpoint, raw)
	}

	if strings.Contains(raw, "://") || strings.ContainsAny(raw, "/?#@") {
		return fmt.Errorf("%w: %q must be host or host:port", ErrInvalidEndpoint, raw)
	}

	parsed, err := url.Parse("http://" + raw + "/")
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidEndpoint, raw, err)
	}

	if parsed.Host != raw || parsed.Hostname() == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, raw)
	}

	return nil
}

// ValidateEndpoints validates every entry and reports the first bad one with its index.
func ValidateEndpoints(endpoints []domain.Endpoint) error {
	for i, ep := range endpoints {
		if err := ValidateEndpoint(ep); err != nil {
			return fmt.Errorf("endpoint #%d: %w", i, err)
		}
	}
	return nil
}

func deviceURL(ep domain.Endpoint, path string) string {
	return "http://" + string(ep) + "/" + strings.TrimPrefix(path, "/")
}
