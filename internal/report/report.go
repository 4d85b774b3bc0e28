// Package report renders comparison results for humans: PNG plots for
// archival, ECharts HTML for the server's debug surface, and ASCII
// sparklines for the terminal.
package report

import (
	"image/color"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/metrics"
)

// generateColors creates a palette of distinct colors for per-object lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// meanSpeedMPS is the average speed over the reference tracks of the
// given pairs: total path length divided by total elapsed time, in
// meters per second. Zero when the pairs span no time.
func meanSpeedMPS(pairs []*metrics.AlignedPair) float64 {
	var dist, elapsed float64
	for _, pair := range pairs {
		samples := pair.Ref.Samples
		if len(samples) < 2 {
			continue
		}
		for i := 1; i < len(samples); i++ {
			dist += geom.Distance2D(samples[i-1].Position, samples[i].Position)
		}
		elapsed += samples[len(samples)-1].T - samples[0].T
	}
	if elapsed <= 0 {
		return 0
	}
	return dist / elapsed
}
