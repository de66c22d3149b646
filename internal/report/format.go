package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kinds of output.
const (
	JSON    = "json"
	YAML    = "yaml"
	Text    = "text"
	Tabular = "tabular"
	Tree    = "tree"
)

// Table styles for the tabular output.
const (
	StylePsql = "psql"
	StylePipe = "pipe"
	StyleGrid = "grid"
)

// Format is a parsed --format value, e.g. "tabular:pipe".
type Format struct {
	Kind  string
	Style string
}

func (f Format) String() string {
	if f.Kind == Tabular {
		return f.Kind + ":" + f.Style
	}
	return f.Kind
}

// ParseFormat validates an output format. "tabular" alone selects the psql style.
func ParseFormat(s string) (Format, error) {
	kind, style, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	switch kind {
	case JSON, YAML, Text, Tree:
		if style != "" {
			return Format{}, fmt.Errorf("unknown output format %q", s)
		}
		return Format{Kind: kind}, nil
	case Tabular:
		switch style {
		case "":
			style = StylePsql
		case StylePsql, StylePipe, StyleGrid:
		default:
			return Format{}, fmt.Errorf("unknown table style %q", style)
		}
		return Format{Kind: kind, Style: style}, nil
	}
	return Format{}, fmt.Errorf("unknown output format %q", s)
}

// WriteJSON writes v indented by four spaces.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// WriteYAML writes v in block style. The value goes through JSON first so
// that the json field names and omitempty rules apply.
func WriteYAML(w io.Writer, v any) error {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, v); err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(buf.Bytes(), &node); err != nil {
		return fmt.Errorf("failed to convert to yaml: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// JSON input decodes into flow style and quoted nodes. The encoder re-quotes
// strings that would otherwise resolve to another tag.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Write renders v in one of the structured formats. Other kinds need a
// dedicated report.
func Write(w io.Writer, f Format, v any) error {
	switch f.Kind {
	case JSON:
		return WriteJSON(w, v)
	case YAML:
		return WriteYAML(w, v)
	}
	return fmt.Errorf("output format %q is not supported here", f)
}
