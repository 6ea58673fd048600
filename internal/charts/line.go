package charts

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/paroisse/paroisse/internal/view"
)

// Line renders one polyline per series with an area fill under the first.
func Line(labels []string, series []Series, opts Options) (template.HTML, error) {
	f, err := newFrame(opts, labels, series)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	f.open(&b, "line")

	step := 0.0
	if len(labels) > 1 {
		step = f.width / float64(len(labels)-1)
	}
	x := func(i int) float64 {
		if len(labels) == 1 {
			return f.left + f.width/2
		}
		return f.left + float64(i)*step
	}

	for j, s := range series {
		var path strings.Builder
		for i, v := range s.Values {
			cmd := "L"
			if i == 0 {
				cmd = "M"
			}
			fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, x(i), f.y(v))
		}
		d := strings.TrimSpace(path.String())
		color := colorOf(s, j)
		if j == 0 {
			fmt.Fprintf(&b, `<path d="%s L%.2f %.2f L%.2f %.2f Z" fill="%s" fill-opacity="0.12" stroke="none" aria-hidden="true"></path>`,
				d, x(len(labels)-1), f.bottom(), x(0), f.bottom(), color)
		}
		fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"></path>`, d, color)
		for i, v := range s.Values {
			fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"><title>%s : %s</title></circle>`,
				x(i), f.y(v), color, template.HTMLEscapeString(labels[i]), view.FormatMoney(v))
		}
	}
	for i, label := range labels {
		f.xLabel(&b, x(i), label)
	}
	f.legend(&b, series)
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// Cumulative turns per-period amounts into running totals.
func Cumulative(values []int64) []int64 {
	out := make([]int64, len(values))
	var sum int64
	for i, v := range values {
		sum += v
		out[i] = sum
	}
	return out
}
