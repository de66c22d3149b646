package cache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"uid": "abc"}]`))
	}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestTransportServesRepeatedRequestsFromCache(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)

	c, err := New(zap.NewNop(), 10, time.Minute)
	require.NoError(t, err)
	client := &http.Client{Transport: NewTransport(c, http.DefaultTransport)}

	status, body := get(t, client, server.URL+"/api/datasources")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"uid": "abc"}]`, body)

	status, body = get(t, client, server.URL+"/api/datasources")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"uid": "abc"}]`, body)
	assert.Equal(t, int32(1), hits.Load())

	c.Clear()
	assert.Equal(t, 0, c.Len())

	get(t, client, server.URL+"/api/datasources")
	assert.Equal(t, int32(2), hits.Load())
}

func TestTransportSkipsErrorResponses(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)

	c, err := New(zap.NewNop(), 10, time.Minute)
	require.NoError(t, err)
	client := &http.Client{Transport: NewTransport(c, nil)}

	status, _ := get(t, client, server.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, status)
	get(t, client, server.URL+"/missing")
	assert.Equal(t, int32(2), hits.Load())
}

func TestTransportDisabled(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)

	c, err := New(zap.NewNop(), 10, 0)
	require.NoError(t, err)
	client := &http.Client{Transport: NewTransport(c, nil)}

	get(t, client, server.URL+"/api/datasources")
	get(t, client, server.URL+"/api/datasources")
	assert.Equal(t, int32(2), hits.Load())
	assert.False(t, c.Enabled())
}

func TestResponsesExpiry(t *testing.T) {
	c, err := New(zap.NewNop(), 10, time.Millisecond)
	require.NoError(t, err)

	c.Set("k", &Item{Status: http.StatusOK, Data: []byte("x")})
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)

	c.ExpireAfter(NoExpiry)
	c.Set("k", &Item{Status: http.StatusOK, Data: []byte("x")})
	item, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.True(t, item.ExpiresAt.IsZero())
}

func TestKeyDependsOnCredentials(t *testing.T) {
	a, _ := http.NewRequest(http.MethodGet, "http://grafana/api/search", nil)
	b, _ := http.NewRequest(http.MethodGet, "http://grafana/api/search", nil)
	a.Header.Set("Authorization", "Bearer one")
	b.Header.Set("Authorization", "Bearer two")
	assert.NotEqual(t, Key(a), Key(b))
}
