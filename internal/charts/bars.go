package charts

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/paroisse/paroisse/internal/view"
)

// Bars renders a grouped bar chart, one group per label and one bar per
// series inside each group.
func Bars(labels []string, series []Series, opts Options) (template.HTML, error) {
	f, err := newFrame(opts, labels, series)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	f.open(&b, "bars")

	group := f.width / float64(len(labels))
	bar := group * 0.8 / float64(len(series))
	for i, label := range labels {
		x := f.left + float64(i)*group + group*0.1
		for j, s := range series {
			top := f.y(s.Values[i])
			fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s %s : %s</title></rect>`,
				x+float64(j)*bar, top, bar, f.bottom()-top, colorOf(s, j),
				template.HTMLEscapeString(s.Name), template.HTMLEscapeString(label), view.FormatMoney(s.Values[i]))
		}
		f.xLabel(&b, f.left+float64(i)*group+group/2, label)
	}
	f.legend(&b, series)
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
