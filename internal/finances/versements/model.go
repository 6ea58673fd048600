package versements

import (
	"time"

	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/shared"
)

// Versement is a payment received from a member.
type Versement struct {
	ID                  int64
	ParoissienID        int64
	ParoissienName      string
	ParoissienMatricule string
	EngagementID        *int64
	Type                finances.VersementType
	Somme               int64
	DateVersement       time.Time
	Reference           string
	Notes               string
	CreatedBy           *int64
	CreatedByName       string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TypeLabel is the French type name.
func (v Versement) TypeLabel() string { return v.Type.Label() }

// Effect describes what the versement adds to its engagement's counters.
func (v Versement) Effect() *finances.Effect {
	e := &finances.Effect{Type: v.Type, Somme: v.Somme}
	if v.EngagementID != nil {
		e.EngagementID = *v.EngagementID
	}
	return e
}

// ListFilters narrows the listing.
type ListFilters struct {
	shared.ListParams
	Period       shared.FiscalPeriod
	Type         finances.VersementType
	ParoissienID int64
	EngagementID int64
}

// Page is one page of versements plus the sum over every matching row.
type Page struct {
	Items []Versement
	Total int
	Sum   int64
}

// Form is the create/update payload. EngagementID 0 means unlinked.
type Form struct {
	ParoissienID  int64     `form:"paroissien_id" validate:"required,gt=0"`
	EngagementID  int64     `form:"engagement_id" validate:"gte=0"`
	Type          string    `form:"type" validate:"required,oneof=DIME DETTE_DIME DETTE_COTISATION OFFRANDE_CONSTRUCTION"`
	Somme         int64     `form:"somme" validate:"gte=1"`
	DateVersement time.Time `form:"date_versement"`
	Reference     string    `form:"reference" validate:"max=80"`
	Notes         string    `form:"notes" validate:"max=2000"`
}

// DefaultForm is a dîme paid today.
func DefaultForm(today time.Time) Form {
	return Form{Type: string(finances.TypeDime), DateVersement: today}
}

// FormFrom pre-fills the edit form.
func FormFrom(v Versement) Form {
	f := Form{
		ParoissienID:  v.ParoissienID,
		Type:          string(v.Type),
		Somme:         v.Somme,
		DateVersement: v.DateVersement,
		Reference:     v.Reference,
		Notes:         v.Notes,
	}
	if v.EngagementID != nil {
		f.EngagementID = *v.EngagementID
	}
	return f
}
