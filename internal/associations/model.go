package associations

import (
	"time"

	"github.com/paroisse/paroisse/internal/shared"
)

// Association groups paroissiens (choir, youth, ...).
type Association struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Sigle         string    `json:"sigle"`
	Description   string    `json:"description"`
	IsActive      bool      `json:"is_active"`
	MemberCount   int       `json:"member_count"`
	OffrandeCount int       `json:"offrande_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayName prefers "Name (SIGLE)" when a sigle is set.
func (a Association) DisplayName() string {
	if a.Sigle == "" {
		return a.Name
	}
	return a.Name + " (" + a.Sigle + ")"
}

// Member is one affiliation as shown on the association page.
type Member struct {
	ParoissienID int64
	Matricule    string
	Name         string
	Phone        string
	IsActive     bool
	IsPrimary    bool
	Statut       string
	DateAdhesion time.Time
}

// Candidate is an active paroissien not yet affiliated.
type Candidate struct {
	ID        int64
	Matricule string
	Name      string
}

// Option feeds association selects and checkbox lists.
type Option struct {
	ID    int64
	Name  string
	Sigle string
}

// Stats summarises associations for the list header.
type Stats struct {
	Total       int
	Active      int
	Inactive    int
	WithMembers int
	Empty       int
}

// ListFilters narrows the association listing.
type ListFilters struct {
	shared.ListParams
	IsActive *bool
}

// AssociationForm is the create/update payload.
type AssociationForm struct {
	Name        string `form:"name" validate:"required,min=2,max=120"`
	Sigle       string `form:"sigle" validate:"omitempty,min=2,max=20"`
	Description string `form:"description" validate:"max=2000"`
	IsActive    bool   `form:"is_active"`
}

// MemberForm adds a paroissien to an association.
type MemberForm struct {
	ParoissienID int64  `form:"paroissien_id" validate:"required,gt=0"`
	IsPrimary    bool   `form:"is_primary"`
	Statut       string `form:"statut" validate:"max=60"`
}
