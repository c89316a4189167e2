package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ozzus/bell-gateway/internal/domain"
)

const (
	DefaultScheduleSort = "schedule_date"
	DefaultBellLogSort  = "id"
)

// Client forwards dashboard requests to the schedule backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a backend client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	normalizedURL, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: normalizedURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// WithHTTPClient overrides the default http.Client. Primarily useful for testing.
func (c *Client) WithHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// ScheduleQuery нормализует параметры сортировки расписания: по умолчанию asc.
func ScheduleQuery(sort, order string) (string, domain.SortOrder) {
	if sort == "" {
		sort = DefaultScheduleSort
	}
	if order == string(domain.SortDesc) {
		return sort, domain.SortDesc
	}
	return sort, domain.SortAsc
}

// BellLogQuery нормализует параметры сортировки журнала: по умолчанию desc.
func BellLogQuery(sort, order string) (string, domain.SortOrder) {
	if sort == "" {
		sort = DefaultBellLogSort
	}
	if order == string(domain.SortAsc) {
		return sort, domain.SortAsc
	}
	return sort, domain.SortDesc
}

func (c *Client) ListSchedules(ctx context.Context, sort string, order domain.SortOrder) ([]domain.Schedule, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/schedules", sortQuery(sort, order))
	if err != nil {
		return nil, fmt.Errorf("create list schedules request: %w", err)
	}

	var schedules []domain.Schedule
	if err := c.do(req, &schedules); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	return schedules, nil
}

func (c *Client) DeleteSchedule(ctx context.Context, id int) (*domain.DeleteResult, error) {
	path := "/delete/" + strconv.Itoa(id)
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return nil, fmt.Errorf("create delete schedule request: %w", err)
	}

	var result domain.DeleteResult
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("delete schedule %d: %w", id, err)
	}

	return &result, nil
}

func (c *Client) ListBellLogs(ctx context.Context, sort string, order domain.SortOrder) ([]domain.BellLog, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/bell_log", sortQuery(sort, order))
	if err != nil {
		return nil, fmt.Errorf("create list bell logs request: %w", err)
	}

	var logs []domain.BellLog
	if err := c.do(req, &logs); err != nil {
		return nil, fmt.Errorf("list bell logs: %w", err)
	}

	return logs, nil
}

// Ping проверяет доступность backend
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/schedules", sortQuery(DefaultScheduleSort, domain.SortAsc))
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}

	return c.do(req, nil)
}

func sortQuery(sort string, order domain.SortOrder) url.Values {
	q := url.Values{}
	q.Set("sort", sort)
	q.Set("order", string(order))
	return q
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("backend base URL is required")
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid backend base URL: %w", err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid backend base URL: %s", raw)
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""

	return strings.TrimSuffix(parsed.String(), "/"), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			host := req.URL.Hostname()
			return fmt.Errorf("execute request: network error contacting %s: %w", host, err)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("execute request: %w", urlErr.Err)
		}
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(b) == 0 {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
