package engagements

import (
	"time"

	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/shared"
)

// Engagement is a member's pledge for a period. The available counters grow
// as linked versements are recorded.
type Engagement struct {
	ID                       int64
	ParoissienID             int64
	ParoissienName           string
	ParoissienMatricule      string
	Dime                     int64
	Cotisation               int64
	DetteDime                int64
	DetteCotisation          int64
	AvailableDime            int64
	AvailableCotisation      int64
	AvailableDetteDime       int64
	AvailableDetteCotisation int64
	PeriodeStart             time.Time
	PeriodeEnd               time.Time
	Notes                    string
	VersementCount           int
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Pledged sums the four pledged buckets.
func (e Engagement) Pledged() int64 {
	return e.Dime + e.Cotisation + e.DetteDime + e.DetteCotisation
}

// Received sums the four counters.
func (e Engagement) Received() int64 {
	return e.AvailableDime + e.AvailableCotisation + e.AvailableDetteDime + e.AvailableDetteCotisation
}

// Progress is the received share of the pledge, capped at 100.
func (e Engagement) Progress() int {
	pledged := e.Pledged()
	if pledged <= 0 {
		return 0
	}
	pct := int(e.Received() * 100 / pledged)
	if pct > 100 {
		return 100
	}
	return pct
}

// Bucket pairs a pledged amount with its counter for display.
type Bucket struct {
	Label     string
	Pledged   int64
	Available int64
}

// Buckets lists the pledge lines in display order.
func (e Engagement) Buckets() []Bucket {
	return []Bucket{
		{Label: "Dîme", Pledged: e.Dime, Available: e.AvailableDime},
		{Label: "Cotisation", Pledged: e.Cotisation, Available: e.AvailableCotisation},
		{Label: "Dette Dîme", Pledged: e.DetteDime, Available: e.AvailableDetteDime},
		{Label: "Dette Cotisation", Pledged: e.DetteCotisation, Available: e.AvailableDetteCotisation},
	}
}

// VersementLine is a versement shown on the engagement detail.
type VersementLine struct {
	ID        int64
	Type      finances.VersementType
	Somme     int64
	Date      time.Time
	Reference string
}

// Option feeds the engagement select of the versement form.
type Option struct {
	ID             int64
	ParoissienID   int64
	ParoissienName string
	PeriodeStart   time.Time
	PeriodeEnd     time.Time
}

// ListFilters narrows the listing.
type ListFilters struct {
	shared.ListParams
	Period       shared.FiscalPeriod
	ParoissienID int64
}

// Form is the create/update payload.
type Form struct {
	ParoissienID    int64     `form:"paroissien_id" validate:"required,gt=0"`
	Dime            int64     `form:"dime" validate:"gte=0"`
	Cotisation      int64     `form:"cotisation" validate:"gte=0"`
	DetteDime       int64     `form:"dette_dime" validate:"gte=0"`
	DetteCotisation int64     `form:"dette_cotisation" validate:"gte=0"`
	PeriodeStart    time.Time `form:"periode_start"`
	PeriodeEnd      time.Time `form:"periode_end"`
	Notes           string    `form:"notes" validate:"max=2000"`
}

// DefaultForm pledges for the whole of year.
func DefaultForm(year int) Form {
	return Form{
		PeriodeStart: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		PeriodeEnd:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// FormFrom pre-fills the edit form.
func FormFrom(e Engagement) Form {
	return Form{
		ParoissienID:    e.ParoissienID,
		Dime:            e.Dime,
		Cotisation:      e.Cotisation,
		DetteDime:       e.DetteDime,
		DetteCotisation: e.DetteCotisation,
		PeriodeStart:    e.PeriodeStart,
		PeriodeEnd:      e.PeriodeEnd,
		Notes:           e.Notes,
	}
}
