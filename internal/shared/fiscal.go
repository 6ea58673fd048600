package shared

import (
	"fmt"
	"strconv"
	"time"
)

const (
	fiscalYearKey    = "fiscal_year"
	fiscalQuarterKey = "fiscal_quarter"

	minFiscalYear = 2000
	maxFiscalYear = 2100
)

// FiscalPeriod is a calendar year, optionally narrowed to one quarter.
type FiscalPeriod struct {
	Year    int
	Quarter int // 0 means the whole year
}

// CurrentFiscalPeriod is the whole current year.
func CurrentFiscalPeriod(now time.Time) FiscalPeriod {
	return FiscalPeriod{Year: now.Year()}
}

// Valid checks year bounds and quarter range.
func (p FiscalPeriod) Valid() bool {
	return p.Year >= minFiscalYear && p.Year <= maxFiscalYear && p.Quarter >= 0 && p.Quarter <= 4
}

// Range returns [start, end) in UTC.
func (p FiscalPeriod) Range() (time.Time, time.Time) {
	if p.Quarter == 0 {
		start := time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	}
	start := time.Date(p.Year, time.Month((p.Quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 3, 0)
}

// Label renders the period in French.
func (p FiscalPeriod) Label() string {
	if p.Quarter == 0 {
		return strconv.Itoa(p.Year)
	}
	return fmt.Sprintf("%s %d", QuarterLabel(p.Quarter), p.Year)
}

// QuarterLabel names a quarter; 0 is the whole year.
func QuarterLabel(q int) string {
	switch q {
	case 1:
		return "1er trimestre (Jan-Mar)"
	case 2:
		return "2ème trimestre (Avr-Juin)"
	case 3:
		return "3ème trimestre (Juil-Sep)"
	case 4:
		return "4ème trimestre (Oct-Déc)"
	default:
		return "Toute l'année"
	}
}

// YearOptions lists the current year and the ten before it.
func YearOptions(now time.Time) []int {
	years := make([]int, 0, 11)
	for i := 0; i <= 10; i++ {
		years = append(years, now.Year()-i)
	}
	return years
}

// FiscalPeriodFromSession reads the selected period, defaulting to the current
// year.
func FiscalPeriodFromSession(sess *Session, now time.Time) FiscalPeriod {
	period := CurrentFiscalPeriod(now)
	if sess == nil {
		return period
	}
	if year, err := strconv.Atoi(sess.Get(fiscalYearKey)); err == nil {
		period.Year = year
	}
	if quarter, err := strconv.Atoi(sess.Get(fiscalQuarterKey)); err == nil {
		period.Quarter = quarter
	}
	if !period.Valid() {
		return CurrentFiscalPeriod(now)
	}
	return period
}

// SaveFiscalPeriod stores the selection in the session.
func SaveFiscalPeriod(sess *Session, p FiscalPeriod) {
	if sess == nil || !p.Valid() {
		return
	}
	sess.Set(fiscalYearKey, strconv.Itoa(p.Year))
	sess.Set(fiscalQuarterKey, strconv.Itoa(p.Quarter))
}

// ParseFiscalPeriod parses year and quarter strings.
func ParseFiscalPeriod(year, quarter string) (FiscalPeriod, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return FiscalPeriod{}, false
	}
	q := 0
	if quarter != "" {
		if q, err = strconv.Atoi(quarter); err != nil {
			return FiscalPeriod{}, false
		}
	}
	p := FiscalPeriod{Year: y, Quarter: q}
	return p, p.Valid()
}
