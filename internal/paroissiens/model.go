package paroissiens

import (
	"time"

	"github.com/paroisse/paroisse/internal/shared"
)

// Enumerations stored as text.
const (
	GenreHomme = "HOMME"
	GenreFemme = "FEMME"

	CategorieAncien = "ANCIEN"
	CategorieDiacre = "DIACRE"
	CategorieFidele = "FIDELE"

	SituationCelibataire = "CELIBATAIRE"
	SituationMarie       = "MARIE"
	SituationVeuf        = "VEUF"
	SituationDivorce     = "DIVORCE"
)

// Choice is a value/label pair for selects.
type Choice struct {
	Value string
	Label string
}

// Genres, Categories and Situations list the selectable values in display order.
var (
	Genres = []Choice{{GenreHomme, "Homme"}, {GenreFemme, "Femme"}}

	Categories = []Choice{{CategorieAncien, "Ancien"}, {CategorieDiacre, "Diacre"}, {CategorieFidele, "Fidèle"}}

	Situations = []Choice{
		{SituationCelibataire, "Célibataire"},
		{SituationMarie, "Marié(e)"},
		{SituationVeuf, "Veuf/Veuve"},
		{SituationDivorce, "Divorcé(e)"},
	}
)

// Label finds the display label of value in choices.
func Label(choices []Choice, value string) string {
	for _, c := range choices {
		if c.Value == value {
			return c.Label
		}
	}
	return value
}

// Paroissien is a registered member of the parish.
type Paroissien struct {
	ID           int64
	Matricule    string
	Name         string
	Genre        string
	Categorie    string
	Situation    string
	Birthdate    *time.Time
	Birthplace   string
	Email        string
	Phone        string
	Address      string
	SchoolLevel  string
	ServicePlace string
	BaptiseDate  *time.Time
	ConfirmDate  *time.Time
	AdhesionDate *time.Time
	Notes        string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// PrimaryAssociation is filled by listings.
	PrimaryAssociation string
	Associations       []AssociationLink
}

// GenreLabel returns the display label of the genre.
func (p Paroissien) GenreLabel() string { return Label(Genres, p.Genre) }

// CategorieLabel returns the display label of the categorie.
func (p Paroissien) CategorieLabel() string { return Label(Categories, p.Categorie) }

// SituationLabel returns the display label of the situation.
func (p Paroissien) SituationLabel() string { return Label(Situations, p.Situation) }

// AssociationLink is one affiliation of a paroissien.
type AssociationLink struct {
	AssociationID int64
	Name          string
	Sigle         string
	IsPrimary     bool
	Statut        string
	DateAdhesion  time.Time
}

// Option feeds paroissien selects on finance forms.
type Option struct {
	ID        int64
	Matricule string
	Name      string
}

// ListFilters narrows the member listing.
type ListFilters struct {
	shared.ListParams
	Categorie     string
	Genre         string
	Situation     string
	AssociationID int64
	IsActive      *bool
}

// Form is the create/update payload. The first association is the primary one.
type Form struct {
	Name           string    `form:"name" validate:"required,min=2,max=160"`
	Genre          string    `form:"genre" validate:"required,oneof=HOMME FEMME"`
	Categorie      string    `form:"categorie" validate:"required,oneof=ANCIEN DIACRE FIDELE"`
	Situation      string    `form:"situation" validate:"required,oneof=CELIBATAIRE MARIE VEUF DIVORCE"`
	Birthdate      time.Time `form:"birthdate"`
	Birthplace     string    `form:"birthplace" validate:"max=120"`
	Email          string    `form:"email" validate:"omitempty,email,max=160"`
	Phone          string    `form:"phone" validate:"max=40"`
	Address        string    `form:"address" validate:"max=255"`
	SchoolLevel    string    `form:"school_level" validate:"max=120"`
	ServicePlace   string    `form:"service_place" validate:"max=120"`
	BaptiseDate    time.Time `form:"baptise_date"`
	ConfirmDate    time.Time `form:"confirm_date"`
	AdhesionDate   time.Time `form:"adhesion_date"`
	Notes          string    `form:"notes" validate:"max=2000"`
	IsActive       bool      `form:"is_active"`
	AssociationIDs []int64   `form:"association_ids"`
}

// DefaultForm is the blank creation form.
func DefaultForm() Form {
	return Form{Genre: GenreHomme, Categorie: CategorieFidele, Situation: SituationCelibataire, IsActive: true}
}

// FormFrom pre-fills the edit form.
func FormFrom(p Paroissien) Form {
	f := Form{
		Name:         p.Name,
		Genre:        p.Genre,
		Categorie:    p.Categorie,
		Situation:    p.Situation,
		Birthplace:   p.Birthplace,
		Email:        p.Email,
		Phone:        p.Phone,
		Address:      p.Address,
		SchoolLevel:  p.SchoolLevel,
		ServicePlace: p.ServicePlace,
		Notes:        p.Notes,
		IsActive:     p.IsActive,
		Birthdate:    deref(p.Birthdate),
		BaptiseDate:  deref(p.BaptiseDate),
		ConfirmDate:  deref(p.ConfirmDate),
		AdhesionDate: deref(p.AdhesionDate),
	}
	for _, link := range p.Associations {
		f.AssociationIDs = append(f.AssociationIDs, link.AssociationID)
	}
	return f
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func optionalDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
