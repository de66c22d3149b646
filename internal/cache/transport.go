package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Transport answers GET requests from the cache and stores successful
// responses of the wrapped RoundTripper.
type Transport struct {
	Cache *Responses
	Next  http.RoundTripper
}

func NewTransport(c *Responses, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{Cache: c, Next: next}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Cache == nil || req.Method != http.MethodGet || !t.Cache.Enabled() {
		return t.Next.RoundTrip(req)
	}

	key := Key(req)
	if item, ok := t.Cache.Get(req.Context(), key); ok {
		t.Cache.logger.Debug("Serving response from cache", zap.String("url", req.URL.String()))
		return item.response(req), nil
	}

	resp, err := t.Next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	t.Cache.Set(key, &Item{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Data:   body,
	})
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// Key identifies a request by URL and credentials.
func Key(req *http.Request) string {
	h := sha256.New()
	h.Write([]byte(req.Header.Get("Authorization")))
	return req.Method + " " + req.URL.String() + " " + hex.EncodeToString(h.Sum(nil)[:8])
}

func (i *Item) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", i.Status, http.StatusText(i.Status)),
		StatusCode:    i.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header(i.Header).Clone(),
		Body:          io.NopCloser(bytes.NewReader(i.Data)),
		ContentLength: int64(len(i.Data)),
		Request:       req,
	}
}
