// Package paginate cuts list results into pages for tool responses and
// walks paged Grafana listings.
package paginate

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultLimit  = 50
	DefaultOffset = 0
)

// Metadata tells a client where the page sits within the whole list.
// NextOffset is -1 on the last page.
type Metadata struct {
	Total      int  `json:"total"`
	Offset     int  `json:"offset"`
	Limit      int  `json:"limit"`
	HasMore    bool `json:"hasMore"`
	NextOffset int  `json:"nextOffset"`
}

type Response struct {
	Data       []any    `json:"data"`
	Pagination Metadata `json:"pagination"`
}

// ParseParams reads limit and offset from tool arguments. Both may arrive
// as strings or JSON numbers; invalid values fall back to the defaults.
func ParseParams(args any) (limit, offset int) {
	limit, offset = DefaultLimit, DefaultOffset

	m, ok := args.(map[string]any)
	if !ok {
		return limit, offset
	}
	if n, ok := intValue(m["limit"]); ok && n > 0 {
		limit = n
	}
	if n, ok := intValue(m["offset"]); ok && n >= 0 {
		offset = n
	}
	return limit, offset
}

func intValue(v any) (int, bool) {
	switch v := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	case float64:
		return int(v), v == math.Trunc(v)
	case int:
		return v, true
	}
	return 0, false
}

// Of returns the page of items starting at offset.
func Of[T any](items []T, offset, limit int) Response {
	page := []any{}
	if limit > 0 && offset < len(items) {
		for _, item := range items[offset:min(offset+limit, len(items))] {
			page = append(page, item)
		}
	}

	next := offset + limit
	if next >= len(items) {
		next = -1
	}
	return Response{
		Data: page,
		Pagination: Metadata{
			Total:      len(items),
			Offset:     offset,
			Limit:      limit,
			HasMore:    next != -1,
			NextOffset: next,
		},
	}
}

// Wrap is Of, marshaled.
func Wrap[T any](items []T, offset, limit int) ([]byte, error) {
	return json.Marshal(Of(items, offset, limit))
}

// Pages calls fetch for successive pages, numbered from 1, until one comes
// back shorter than pageSize. A page of exactly pageSize items always
// triggers one more request. On error, the items collected so far are
// returned with it.
func Pages[T any](ctx context.Context, pageSize int, fetch func(ctx context.Context, pageSize, page int) ([]T, error)) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultLimit
	}
	var all []T
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		items, err := fetch(ctx, pageSize, page)
		if err != nil {
			return all, err
		}
		all = append(all, items...)
		if len(items) < pageSize {
			return all, nil
		}
	}
}
