package view

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/paroisse/paroisse/internal/audit"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	chrome    ChromeFunc
}

// ChromeFunc builds the per-request layout (user menu, sidebar, period).
type ChromeFunc func(r *http.Request) Layout

// Layout is the data shared by every authenticated page.
type Layout struct {
	UserName    string
	UserEmail   string
	RoleLabel   string
	Nav         []NavLink
	FiscalLabel string
}

// NavLink is one rendered sidebar entry.
type NavLink struct {
	Title    string
	Href     string
	Icon     string
	Active   bool
	Children []NavLink
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Layout      Layout
	Data        any
}

// CurrencyLabel is appended by formatMoney.
var CurrencyLabel = "FCFA"

var frPrinter = message.NewPrinter(language.French)

var frenchMonths = [...]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(Funcs()).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*.html",
		"templates/pages/*/*.html",
		"templates/pages/*/*/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// SetChrome installs the layout builder. Without one, pages render with an
// empty Layout.
func (e *Engine) SetChrome(fn ChromeFunc) {
	e.chrome = fn
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, r *http.Request, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	if e.chrome != nil && r != nil {
		data.Layout = e.chrome(r)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// Funcs returns the helpers available to templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"formatMoney":     FormatMoney,
		"formatNumber":    formatAnyNumber,
		"formatDate":      FormatDate,
		"formatDateTime":  formatDateTime,
		"formatDateInput": formatDateInput,
		"add":             func(a, b int) int { return a + b },
		"sub":             func(a, b int) int { return a - b },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"safeSVG":      func(s string) template.HTML { return template.HTML(s) },
		"quarterLabel": shared.QuarterLabel,
		"actionLabel":  audit.ActionLabel,
		"entityLabel":  audit.EntityLabel,
		"quarters":     func() []int { return []int{0, 1, 2, 3, 4} },
		"pageURL":      pageURL,
		"hasPrefix": func(s, prefix string) bool {
			return strings.HasPrefix(s, prefix)
		},
		"dict": dict,
		"contains": func(list []int64, id int64) bool {
			for _, v := range list {
				if v == id {
					return true
				}
			}
			return false
		},
	}
}

// FormatMoney renders an amount with French digit grouping, e.g. "15 000 FCFA".
func FormatMoney(amount int64) string {
	return FormatNumber(amount) + " " + CurrencyLabel
}

// FormatNumber renders an integer with French digit grouping.
func FormatNumber(n int64) string {
	return frPrinter.Sprintf("%d", n)
}

// formatAnyNumber lets templates pass int counts as well as int64 amounts.
func formatAnyNumber(n any) string {
	switch v := n.(type) {
	case int:
		return FormatNumber(int64(v))
	case int32:
		return FormatNumber(int64(v))
	case int64:
		return FormatNumber(v)
	default:
		return fmt.Sprint(v)
	}
}

// FormatDate renders "02 janvier 2006".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return FormatDate(t) + " " + t.Format("15:04")
}

func formatDateInput(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// dict builds a map from alternating keys and values so partials can take
// several arguments.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		out[key] = pairs[i+1]
	}
	return out, nil
}

// pageURL rewrites the page parameter of the current query.
func pageURL(path string, query url.Values, page int) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	return path + "?" + q.Encode()
}
