package presentation

import (
	"fmt"
	"io"
	"strings"
)

// Renderer writes a Series as one artifact format.
type Renderer interface {
	Render(w io.Writer, s Series) error
	Ext() string
}

var (
	_ Renderer = (*ChartRenderer)(nil)
	_ Renderer = (*WorkbookRenderer)(nil)
)

// NewRenderer returns the renderer for format ("html" or "xlsx").
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "html":
		return NewChartRenderer(), nil
	case "xlsx":
		return NewWorkbookRenderer(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
