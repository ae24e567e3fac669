// Package chart draws a time series as a standalone SVG line chart.
package chart

import (
	"bytes"
	"fmt"
	"html"
	"strconv"

	"github.com/kjstillabower/weather-viz-service/internal/models"
)

// ContentType is the media type of RenderSVG output.
const ContentType = "image/svg+xml"

const (
	width        = 800
	height       = 400
	marginLeft   = 64
	marginRight  = 24
	marginTop    = 40
	marginBottom = 48
)

// point is a plotted coordinate in SVG user space.
type point struct{ x, y float64 }

// RenderSVG draws the series. Missing values split the line into segments;
// a series with no values renders the frame and a "no data" label.
func RenderSVG(series models.TimeSeries, title string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		width, height, width, height)
	b.WriteString(`<rect width="100%" height="100%" fill="white"/>` + "\n")
	fmt.Fprintf(&b, `<text x="%d" y="24" font-family="sans-serif" font-size="16">%s</text>`+"\n",
		marginLeft, html.EscapeString(caption(title, series.Unit)))

	plotW := float64(width - marginLeft - marginRight)
	plotH := float64(height - marginTop - marginBottom)
	fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%s" height="%s" fill="none" stroke="#999"/>`+"\n",
		marginLeft, marginTop, num(plotW), num(plotH))

	lo, hi, ok := bounds(series.Values)
	if !ok {
		fmt.Fprintf(&b, `<text x="%s" y="%s" text-anchor="middle" font-family="sans-serif" font-size="14" fill="#666">no data</text>`+"\n",
			num(float64(marginLeft)+plotW/2), num(float64(marginTop)+plotH/2))
		b.WriteString("</svg>\n")
		return b.Bytes()
	}

	scaleX := func(i int) float64 {
		n := len(series.Values)
		if n == 1 {
			return float64(marginLeft) + plotW/2
		}
		return float64(marginLeft) + plotW*float64(i)/float64(n-1)
	}
	scaleY := func(v float64) float64 {
		return float64(marginTop) + plotH*(hi-v)/(hi-lo)
	}

	for _, seg := range segments(series.Values, scaleX, scaleY) {
		if len(seg) == 1 {
			fmt.Fprintf(&b, `<circle cx="%s" cy="%s" r="2" fill="steelblue"/>`+"\n", num(seg[0].x), num(seg[0].y))
			continue
		}
		b.WriteString(`<polyline fill="none" stroke="steelblue" stroke-width="1.5" points="`)
		for i, p := range seg {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(num(p.x) + "," + num(p.y))
		}
		b.WriteString(`"/>` + "\n")
	}

	axisText := `<text x="%s" y="%s" text-anchor="%s" font-family="sans-serif" font-size="11" fill="#333">%s</text>` + "\n"
	fmt.Fprintf(&b, axisText, num(marginLeft-6), num(float64(marginTop)+4), "end", num(hi))
	fmt.Fprintf(&b, axisText, num(marginLeft-6), num(float64(marginTop)+plotH), "end", num(lo))
	if n := len(series.Timestamps); n > 0 {
		base := float64(marginTop) + plotH + 18
		fmt.Fprintf(&b, axisText, num(marginLeft), num(base), "start", html.EscapeString(series.Timestamps[0]))
		if n > 1 {
			fmt.Fprintf(&b, axisText, num(float64(marginLeft)+plotW), num(base), "end", html.EscapeString(series.Timestamps[n-1]))
		}
	}
	b.WriteString("</svg>\n")
	return b.Bytes()
}

func caption(title, unit string) string {
	if unit == "" {
		return title
	}
	return title + " (" + unit + ")"
}

// bounds returns the value range, widened when flat so the line sits mid-plot.
func bounds(values []*float64) (lo, hi float64, ok bool) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if !ok {
			lo, hi, ok = *v, *v, true
			continue
		}
		lo = min(lo, *v)
		hi = max(hi, *v)
	}
	if ok && lo == hi {
		lo, hi = lo-1, hi+1
	}
	return lo, hi, ok
}

func segments(values []*float64, scaleX func(int) float64, scaleY func(float64) float64) [][]point {
	var out [][]point
	var cur []point
	for i, v := range values {
		if v == nil {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, point{x: scaleX(i), y: scaleY(*v)})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
