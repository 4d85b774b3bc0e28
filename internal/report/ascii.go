package report

import "github.com/guptarohit/asciigraph"

// Sparkline renders a small terminal graph of the values. Returns the
// empty string when there is nothing to draw.
func Sparkline(values []float64, caption string) string {
	if len(values) == 0 {
		return ""
	}
	return asciigraph.Plot(values,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
}
