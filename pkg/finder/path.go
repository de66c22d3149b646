package finder

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path, either an object field or an array index.
type Segment struct {
	Field   string
	Index   int
	IsIndex bool
}

func Field(name string) Segment { return Segment{Field: name} }
func Index(i int) Segment       { return Segment{Index: i, IsIndex: true} }

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Field
}

// Path is the route from the root of a tree to one of its nodes.
type Path []Segment

// String renders the path the way it is displayed to users, e.g.
// dashboard.panels.[1].targets.[0].measurement.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Last returns the final segment, or the zero Segment for the root path.
func (p Path) Last() Segment {
	if len(p) == 0 {
		return Segment{}
	}
	return p[len(p)-1]
}

func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON reads the rendered form back. Field names containing a dot
// come back split.
func (p *Path) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	parsed, err := ParsePath(text)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePath parses the rendered form of a path, e.g. panels.[1].title.
func ParsePath(text string) (Path, error) {
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, ".")
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		if inner, ok := strings.CutPrefix(part, "["); ok {
			if digits, ok := strings.CutSuffix(inner, "]"); ok {
				i, err := strconv.Atoi(digits)
				if err != nil || i < 0 {
					return nil, fmt.Errorf("invalid index %q in path %q", part, text)
				}
				path = append(path, Index(i))
				continue
			}
		}
		path = append(path, Field(part))
	}
	return path, nil
}

func (p Path) with(s Segment) Path {
	next := make(Path, len(p), len(p)+1)
	copy(next, p)
	return append(next, s)
}

// Resolve applies path to tree and returns the addressed node.
func Resolve(tree any, path Path) (any, bool) {
	node := tree
	for _, seg := range path {
		switch v := node.(type) {
		case map[string]any:
			if seg.IsIndex {
				return nil, false
			}
			child, ok := v[seg.Field]
			if !ok {
				return nil, false
			}
			node = child
		case []any:
			if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(v) {
				return nil, false
			}
			node = v[seg.Index]
		default:
			return nil, false
		}
	}
	return node, true
}
