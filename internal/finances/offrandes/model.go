package offrandes

import (
	"time"

	"github.com/paroisse/paroisse/internal/shared"
)

// Offrande is an offering collected by an association.
type Offrande struct {
	ID              int64
	AssociationID   int64
	AssociationName string
	Somme           int64
	OffrandeDay     time.Time
	Description     string
	CreatedBy       *int64
	CreatedByName   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ListFilters narrows the listing.
type ListFilters struct {
	shared.ListParams
	Period        shared.FiscalPeriod
	AssociationID int64
}

// Page is one page of offrandes plus the sum over every matching row.
type Page struct {
	Items []Offrande
	Total int
	Sum   int64
}

// Form is the create/update payload.
type Form struct {
	AssociationID int64     `form:"association_id" validate:"required,gt=0"`
	Somme         int64     `form:"somme" validate:"gte=1"`
	OffrandeDay   time.Time `form:"offrande_day"`
	Description   string    `form:"description" validate:"max=500"`
}

// FormFrom pre-fills the edit form.
func FormFrom(o Offrande) Form {
	return Form{AssociationID: o.AssociationID, Somme: o.Somme, OffrandeDay: o.OffrandeDay, Description: o.Description}
}
