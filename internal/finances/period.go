package finances

import (
	"net/http"
	"time"

	"github.com/paroisse/paroisse/internal/shared"
)

// PeriodFromRequest reads ?year= and ?quarter=, falling back to the period
// selected in the session.
func PeriodFromRequest(r *http.Request, now time.Time) shared.FiscalPeriod {
	q := r.URL.Query()
	if year := q.Get("year"); year != "" {
		if p, ok := shared.ParseFiscalPeriod(year, q.Get("quarter")); ok {
			return p
		}
	}
	return shared.FiscalPeriodFromSession(shared.SessionFromContext(r.Context()), now)
}

// MonthLabels are the short French month names used on charts.
var MonthLabels = [12]string{"Jan", "Fév", "Mar", "Avr", "Mai", "Juin", "Juil", "Aoû", "Sep", "Oct", "Nov", "Déc"}

// NewestFirst defaults a listing to descending order unless ?dir= is given.
func NewestFirst(r *http.Request, p shared.ListParams) shared.ListParams {
	if r.URL.Query().Get("dir") == "" {
		p.SortDir = "desc"
	}
	return p
}
