package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NoExpiry is the TTL of cache entries which never expire.
const NoExpiry time.Duration = -1

// parseSpan accepts Go durations plus a day suffix, e.g. "7d".
func parseSpan(span string) (time.Duration, error) {
	if d, err := time.ParseDuration(span); err == nil {
		return d, nil
	}
	if days, ok := strings.CutSuffix(span, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	return 0, fmt.Errorf("use seconds or a duration like '30m', '2h' or '7d'")
}

// ParseTTL parses a cache TTL. Plain numbers are seconds, "inf" or "infinite"
// yields NoExpiry and "0" disables caching.
func ParseTTL(ttl string) (time.Duration, error) {
	ttl = strings.TrimSpace(strings.ToLower(ttl))
	switch ttl {
	case "":
		return 0, fmt.Errorf("empty cache ttl")
	case "inf", "infinite", "forever", "-1":
		return NoExpiry, nil
	}
	if seconds, err := strconv.Atoi(ttl); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("invalid cache ttl %q: must not be negative", ttl)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := parseSpan(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", ttl, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid cache ttl %q: must not be negative", ttl)
	}
	return d, nil
}
