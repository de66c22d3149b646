package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/mitchellh/colorstring"
)

const (
	styleSection    = "[bold][cyan]"
	styleSubsection = "[magenta]"
	styleTitle      = "[bold][magenta]"
	styleKey        = "[bold][blue]"
	styleMatch      = "[bold][yellow]"
	styleValue      = "[bold][white]"
)

// painter applies terminal colors. User data never passes through the
// colorstring parser, so brackets in values are printed as they are.
type painter struct {
	colorize colorstring.Colorize
}

func newPainter(color bool) painter {
	return painter{colorize: colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !color,
	}}
}

func (p painter) paint(style string, v any) string {
	text := fmt.Sprint(v)
	if p.colorize.Disable {
		return text
	}
	return p.colorize.Color(style) + text + p.colorize.Color("[reset]")
}

// highlightJSON pretty prints data and colors it for a terminal.
func highlightJSON(w io.Writer, data any, color bool) error {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, data); err != nil {
		return err
	}
	if !color {
		_, err := w.Write(buf.Bytes())
		return err
	}
	if err := quick.Highlight(w, buf.String(), "json", "terminal", "swapoff"); err != nil {
		return fmt.Errorf("failed to highlight json: %w", err)
	}
	return nil
}

// bibliography renders aligned "Key: value" lines.
func bibliography(p painter, entries [][2]string) string {
	width := 0
	for _, e := range entries {
		width = max(width, len(e[0]))
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%-*s %s\n", width+1, e[0]+":", p.paint(styleValue, e[1]))
	}
	return b.String()
}
