package paroissiens

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/paroisse/paroisse/internal/shared"
)

const (
	auditEntity       = "paroissien"
	matriculeAttempts = 3
)

// Service applies paroissien business rules.
type Service struct {
	repo      Repository
	audit     shared.AuditRecorder
	logger    *slog.Logger
	validator *shared.Validator
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, validator: shared.NewValidator(), now: time.Now}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Paroissien, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Paroissien, error) {
	return s.repo.Get(ctx, id)
}

// FindByMatricule resolves a matricule to an id.
func (s *Service) FindByMatricule(ctx context.Context, matricule string) (int64, error) {
	matricule = strings.TrimSpace(matricule)
	if matricule == "" {
		return 0, shared.ErrNotFound
	}
	return s.repo.IDByMatricule(ctx, matricule)
}

// Create registers a paroissien under a freshly generated matricule.
func (s *Service) Create(ctx context.Context, actor int64, form Form) (Paroissien, error) {
	form = normalize(form)
	if err := s.validator.Struct(form); err != nil {
		return Paroissien{}, err
	}
	p := fromForm(form)
	var (
		created Paroissien
		err     error
	)
	for attempt := 0; attempt < matriculeAttempts; attempt++ {
		p.Matricule = NewMatricule(s.now())
		created, err = s.repo.Create(ctx, p, form.AssociationIDs)
		if err == nil || !shared.IsDuplicate(err) {
			break
		}
	}
	if err != nil {
		return Paroissien{}, err
	}
	s.record(ctx, actor, shared.AuditCreate, created.ID, map[string]any{"matricule": created.Matricule, "name": created.Name})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor, id int64, form Form) error {
	form = normalize(form)
	if err := s.validator.Struct(form); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, fromForm(form), form.AssociationIDs); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditUpdate, id, map[string]any{"name": form.Name, "associations": form.AssociationIDs})
	return nil
}

// Deactivate is the soft delete.
func (s *Service) Deactivate(ctx context.Context, actor, id int64) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditDelete, id, map[string]any{"soft": true})
	return nil
}

func (s *Service) Restore(ctx context.Context, actor, id int64) error {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditRestore, id, nil)
	return nil
}

// HardDelete removes the paroissien. Finance records referencing it make the
// database refuse with a conflict.
func (s *Service) HardDelete(ctx context.Context, actor, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditDelete, id, map[string]any{"soft": false})
	return nil
}

func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx)
}

// CountByCategorie counts active paroissiens; every categorie is present.
func (s *Service) CountByCategorie(ctx context.Context) (map[string]int, error) {
	counts, err := s.repo.CountByCategorie(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range Categories {
		if _, ok := counts[c.Value]; !ok {
			counts[c.Value] = 0
		}
	}
	return counts, nil
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Paroissien, error) {
	return s.repo.Recent(ctx, limit)
}

func (s *Service) Options(ctx context.Context) ([]Option, error) {
	return s.repo.Options(ctx)
}

func (s *Service) record(ctx context.Context, actor int64, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, Action: action, Entity: auditEntity, EntityID: strconv.FormatInt(id, 10), Meta: meta})
	if err != nil {
		s.logger.Warn("audit paroissien", slog.String("action", action), slog.Any("error", err))
	}
}

func normalize(f Form) Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Genre = strings.ToUpper(strings.TrimSpace(f.Genre))
	f.Categorie = strings.ToUpper(strings.TrimSpace(f.Categorie))
	f.Situation = strings.ToUpper(strings.TrimSpace(f.Situation))
	f.Birthplace = strings.TrimSpace(f.Birthplace)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	f.SchoolLevel = strings.TrimSpace(f.SchoolLevel)
	f.ServicePlace = strings.TrimSpace(f.ServicePlace)
	f.Notes = strings.TrimSpace(f.Notes)
	return f
}

func fromForm(f Form) Paroissien {
	return Paroissien{
		Name:         f.Name,
		Genre:        f.Genre,
		Categorie:    f.Categorie,
		Situation:    f.Situation,
		Birthdate:    optionalDate(f.Birthdate),
		Birthplace:   f.Birthplace,
		Email:        f.Email,
		Phone:        f.Phone,
		Address:      f.Address,
		SchoolLevel:  f.SchoolLevel,
		ServicePlace: f.ServicePlace,
		BaptiseDate:  optionalDate(f.BaptiseDate),
		ConfirmDate:  optionalDate(f.ConfirmDate),
		AdhesionDate: optionalDate(f.AdhesionDate),
		Notes:        f.Notes,
		IsActive:     f.IsActive,
	}
}
