package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozzus/bell-gateway/internal/domain"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, 5*time.Second)
	require.NoError(t, err)
	return c
}

func TestNewClient_NormalizesBaseURL(t *testing.T) {
	c, err := NewClient("127.0.0.1:5000/", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5000", c.BaseURL())

	_, err = NewClient("  ", 0)
	assert.Error(t, err)
}

func TestListSchedules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/schedules", r.URL.Path)
		assert.Equal(t, "name", r.URL.Query().Get("sort"))
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":7,"name":"Morning","bell_type":2,"schedule_date":"2025-01-06","schedule_time":"05:00 AM"}]`))
	}))
	defer srv.Close()

	schedules, err := newTestClient(t, srv.URL).ListSchedules(context.Background(), "name", domain.SortDesc)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, 7, schedules[0].ID)
	assert.Equal(t, domain.BellTypeNormal, schedules[0].BellType)
	assert.Equal(t, "05:00 AM", schedules[0].ScheduleTime)
}

func TestDeleteSchedule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/delete/42", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"message":"Schedule 42 deleted successfully"}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL).DeleteSchedule(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Schedule 42 deleted successfully", res.Message)
}

func TestDeleteSchedule_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/delete/0", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"Schedule not found"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).DeleteSchedule(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Contains(t, err.Error(), "Schedule not found")
}

func TestListBellLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bell_log", r.URL.Path)
		assert.Equal(t, "id", r.URL.Query().Get("sort"))
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		_, _ = w.Write([]byte(`[{"id":1,"name":"Morning","bell_type":0,"date_logged":"2025-01-06","ring_time":"05:00 AM"},{"id":2,"name":"Old","bell_type":1,"date_logged":"2025-01-05","ring_time":null}]`))
	}))
	defer srv.Close()

	sort, order := BellLogQuery("", "")
	logs, err := newTestClient(t, srv.URL).ListBellLogs(context.Background(), sort, order)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.NotNil(t, logs[0].RingTime)
	assert.Equal(t, "05:00 AM", *logs[0].RingTime)
	assert.Nil(t, logs[1].RingTime)
}

func TestListSchedules_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).ListSchedules(context.Background(), DefaultScheduleSort, domain.SortAsc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestQueryDefaults(t *testing.T) {
	sort, order := ScheduleQuery("", "bogus")
	assert.Equal(t, "schedule_date", sort)
	assert.Equal(t, domain.SortAsc, order)

	sort, order = ScheduleQuery("name", "desc")
	assert.Equal(t, "name", sort)
	assert.Equal(t, domain.SortDesc, order)

	sort, order = BellLogQuery("", "asc")
	assert.Equal(t, "id", sort)
	assert.Equal(t, domain.SortAsc, order)

	_, order = BellLogQuery("", "")
	assert.Equal(t, domain.SortDesc, order)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestPing_UsesInjectedHTTPClient(t *testing.T) {
	var gotURL string
	c := newTestClient(t, "backend.local:5000")
	c.WithHTTPClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Body:       io.NopCloser(strings.NewReader("maintenance")),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})})

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503: maintenance")
	assert.Equal(t, "http://backend.local:5000/schedules?order=asc&sort=schedule_date", gotURL)

	c.WithHTTPClient(nil)
	err = c.Ping(context.Background())
	assert.Contains(t, err.Error(), "unexpected status 503", "nil keeps the previous client")
}
