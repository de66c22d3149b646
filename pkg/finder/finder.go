// Package finder searches arbitrary JSON trees for textual occurrences of a
// needle and reports the exact location of every hit.
package finder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Aggregation keys which are never reported as a match themselves. Their
// elements are examined one by one instead.
var reserved = map[string]struct{}{
	"rows":    {},
	"panels":  {},
	"targets": {},
	"tags":    {},
	"groupBy": {},
	"list":    {},
	"links":   {},
}

// Match is one node of a tree whose textual form contains the needle.
type Match struct {
	Path  Path `json:"path"`
	Value any  `json:"value"`
}

type Finder struct {
	logger *zap.Logger
}

func New(log *zap.Logger) *Finder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Finder{logger: log}
}

// Find is a shorthand for a Finder that discards warnings.
func Find(needle string, tree any) []Match {
	return New(nil).Find(needle, tree)
}

// Find walks tree depth first and returns every scalar whose text contains
// needle, case sensitive. Object fields are visited in key order. An empty
// needle yields no matches.
func (f *Finder) Find(needle string, tree any) []Match {
	if needle == "" {
		return nil
	}
	if rejectable(needle) {
		text, err := serialize(tree)
		if err != nil {
			f.logger.Warn("Failed to serialize tree, searching it node by node", zap.Error(err))
		} else if !strings.Contains(text, needle) {
			return nil
		}
	}

	var matches []Match
	f.walk(needle, tree, nil, &matches)
	return matches
}

func (f *Finder) walk(needle string, node any, path Path, out *[]Match) {
	switch v := node.(type) {
	case nil:
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			f.walk(needle, v[k], path.with(Field(k)), out)
		}
	case []any:
		if _, ok := reserved[path.Last().Field]; ok || hasContainer(v) {
			for i, elem := range v {
				f.walk(needle, elem, path.with(Index(i)), out)
			}
			return
		}
		if len(v) == 0 {
			return
		}
		// A plain list of scalars is reported as a whole, followed by its
		// matching elements.
		text, err := serialize(v)
		if err != nil {
			f.logger.Warn("Skipping unserializable list", zap.String("path", path.String()), zap.Error(err))
		} else if strings.Contains(text, needle) {
			*out = append(*out, Match{Path: path, Value: v})
		}
		for i, elem := range v {
			f.walk(needle, elem, path.with(Index(i)), out)
		}
	case string, bool, float64, json.Number, int, int64:
		if _, ok := reserved[path.Last().Field]; ok && !path.Last().IsIndex {
			return
		}
		text, _ := scalarText(v)
		if strings.Contains(text, needle) {
			*out = append(*out, Match{Path: path, Value: v})
		}
	default:
		f.logger.Warn("Skipping node of unexpected type",
			zap.String("path", path.String()),
			zap.String("type", fmt.Sprintf("%T", v)))
	}
}

func hasContainer(list []any) bool {
	for _, elem := range list {
		switch elem.(type) {
		case map[string]any, []any:
			return true
		}
	}
	return false
}

// scalarText renders a scalar the way it appears in serialized JSON, so that
// the fast reject and the leaf comparison agree.
func scalarText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// rejectable reports whether needle survives JSON encoding unchanged, which
// is required for checking it against the serialized tree.
func rejectable(needle string) bool {
	if !utf8.ValidString(needle) {
		return false
	}
	for _, r := range needle {
		if r < 0x20 || r == '"' || r == '\\' || r == '\u2028' || r == '\u2029' {
			return false
		}
	}
	return true
}

func serialize(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
