// Package charts renders small inline SVG charts for the HTML views.
package charts

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Defaults used when a dimension is not set.
const (
	DefaultWidth   = 720
	DefaultHeight  = 260
	DefaultPadding = 36.0
	DefaultTicks   = 5

	axisColor = "#475569"
	gridColor = "#cbd5e1"
)

// Palette colours successive series.
var Palette = []string{"#2563eb", "#16a34a", "#f59e0b", "#dc2626", "#7c3aed"}

var (
	errNoSeries     = errors.New("charts: at least one series required")
	errNoLabels     = errors.New("charts: labels required")
	errLengths      = errors.New("charts: series length must match labels")
	errViewportSize = errors.New("charts: viewport too small")
)

// Series is one named set of amounts, one per label.
type Series struct {
	Name   string
	Values []int64
	Color  string
}

// Options describes the frame of a chart.
type Options struct {
	Title       string
	Description string
	Width       int
	Height      int
	Padding     float64
	Ticks       int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Padding <= 0 {
		o.Padding = DefaultPadding
	}
	if o.Ticks <= 0 {
		o.Ticks = DefaultTicks
	}
	return o
}

// frame holds the computed geometry shared by every chart kind.
type frame struct {
	opts   Options
	left   float64
	top    float64
	width  float64
	height float64
	max    float64
}

func newFrame(opts Options, labels []string, series []Series) (frame, error) {
	if len(series) == 0 {
		return frame{}, errNoSeries
	}
	if len(labels) == 0 {
		return frame{}, errNoLabels
	}
	max := 0.0
	for _, s := range series {
		if len(s.Values) != len(labels) {
			return frame{}, errLengths
		}
		for _, v := range s.Values {
			max = math.Max(max, float64(v))
		}
	}
	opts = opts.withDefaults()
	f := frame{
		opts:   opts,
		left:   opts.Padding + 12,
		top:    opts.Padding,
		width:  float64(opts.Width) - 2*opts.Padding - 12,
		height: float64(opts.Height) - 2*opts.Padding,
		max:    niceCeiling(max),
	}
	if f.width <= 0 || f.height <= 0 {
		return frame{}, errViewportSize
	}
	return f, nil
}

// y maps an amount onto the vertical axis; negative amounts sit on the axis.
func (f frame) y(v int64) float64 {
	if v < 0 {
		v = 0
	}
	return f.top + f.height - float64(v)/f.max*f.height
}

func (f frame) bottom() float64 { return f.top + f.height }

func (f frame) open(b *strings.Builder, kind string) {
	titleID := makeID(f.opts.Title, kind+"-title")
	descID := makeID(f.opts.Title, kind+"-desc")
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s" class="chart">`,
		f.opts.Width, f.opts.Height, titleID, descID)
	fmt.Fprintf(b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(fallback(f.opts.Title, "Graphique")))
	fmt.Fprintf(b, `<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(f.opts.Description))

	for i := 0; i <= f.opts.Ticks; i++ {
		ratio := float64(i) / float64(f.opts.Ticks)
		y := f.bottom() - ratio*f.height
		fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`,
			f.left, y, f.left+f.width, y, gridColor)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`,
			f.left-6, y+4, axisColor, FormatTick(f.max*ratio))
	}
	fmt.Fprintf(b, `<g stroke="%s"><line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line><line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line></g>`,
		axisColor, f.left, f.top, f.left, f.bottom(), f.left, f.bottom(), f.left+f.width, f.bottom())
}

func (f frame) legend(b *strings.Builder, series []Series) {
	x := f.left
	y := math.Max(f.top-14, 12)
	for i, s := range series {
		fmt.Fprintf(b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, x, y-9, colorOf(s, i))
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10">%s</text>`, x+14, y, axisColor, template.HTMLEscapeString(s.Name))
		x += 24 + 6*float64(len([]rune(s.Name)))
	}
}

func (f frame) xLabel(b *strings.Builder, x float64, label string) {
	fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`,
		x, f.bottom()+14, axisColor, template.HTMLEscapeString(label))
}

func colorOf(s Series, i int) string {
	if s.Color != "" {
		return s.Color
	}
	return Palette[i%len(Palette)]
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

// niceCeiling rounds max up to 1, 2 or 5 times a power of ten so ticks land
// on readable amounts. An empty chart still gets a unit scale.
func niceCeiling(max float64) float64 {
	if max <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(max)))
	for _, m := range []float64{1, 2, 5, 10} {
		if m*exp >= max {
			return m * exp
		}
	}
	return 10 * exp
}

// FormatTick abbreviates an amount for an axis: 1 500 000 becomes "1,5M".
func FormatTick(v float64) string {
	abs := math.Abs(v)
	var s string
	switch {
	case abs >= 1_000_000_000:
		s = fmt.Sprintf("%.1fMd", v/1_000_000_000)
	case abs >= 1_000_000:
		s = fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		s = fmt.Sprintf("%.1fk", v/1_000)
	default:
		return fmt.Sprintf("%.0f", v)
	}
	s = strings.Replace(s, ".0", "", 1)
	return strings.Replace(s, ".", ",", 1)
}
