package associations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/paroisse/paroisse/internal/shared"
)

const auditEntity = "association"

// Service applies association business rules.
type Service struct {
	repo      Repository
	audit     shared.AuditRecorder
	logger    *slog.Logger
	validator *shared.Validator
}

// NewService constructs a Service.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, validator: shared.NewValidator()}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Association, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// Detail returns the association with its members, primary members first.
func (s *Service) Detail(ctx context.Context, id int64) (Association, []Member, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Association{}, nil, err
	}
	members, err := s.repo.Members(ctx, id)
	if err != nil {
		return Association{}, nil, err
	}
	return a, members, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Association, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Candidates(ctx context.Context, id int64) ([]Candidate, error) {
	return s.repo.Candidates(ctx, id)
}

func (s *Service) Options(ctx context.Context) ([]Option, error) {
	return s.repo.Options(ctx)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) Create(ctx context.Context, actor int64, form AssociationForm) (Association, error) {
	form = normalize(form)
	if err := s.validator.Struct(form); err != nil {
		return Association{}, err
	}
	created, err := s.repo.Create(ctx, Association{Name: form.Name, Sigle: form.Sigle, Description: form.Description, IsActive: form.IsActive})
	if err != nil {
		return Association{}, duplicateName(err)
	}
	s.record(ctx, actor, shared.AuditCreate, created.ID, map[string]any{"name": created.Name})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor, id int64, form AssociationForm) error {
	form = normalize(form)
	if err := s.validator.Struct(form); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, Association{Name: form.Name, Sigle: form.Sigle, Description: form.Description, IsActive: form.IsActive}); err != nil {
		return duplicateName(err)
	}
	s.record(ctx, actor, shared.AuditUpdate, id, map[string]any{"name": form.Name})
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

// HardDelete removes the association; refused while members remain.
func (s *Service) HardDelete(ctx context.Context, actor, id int64) error {
	count, err := s.repo.CountMembers(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &shared.ConflictError{Message: fmt.Sprintf("Impossible de supprimer: %d membre(s) encore affilié(s)", count)}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditDelete, id, map[string]any{"soft": false})
	return nil
}

func (s *Service) AddMember(ctx context.Context, actor, id int64, form MemberForm) error {
	form.Statut = strings.TrimSpace(form.Statut)
	if err := s.validator.Struct(form); err != nil {
		return err
	}
	exists, err := s.repo.HasMember(ctx, id, form.ParoissienID)
	if err != nil {
		return err
	}
	if exists {
		return &shared.ConflictError{Message: "Ce membre est déjà affilié à cette association"}
	}
	if err := s.repo.AddMember(ctx, id, form); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditUpdate, id, map[string]any{"member_added": form.ParoissienID})
	return nil
}

func (s *Service) RemoveMember(ctx context.Context, actor, id, paroissienID int64) error {
	if err := s.repo.RemoveMember(ctx, id, paroissienID); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditUpdate, id, map[string]any{"member_removed": paroissienID})
	return nil
}

func (s *Service) UpdateMemberStatus(ctx context.Context, actor, id, paroissienID int64, statut string) error {
	statut = strings.TrimSpace(statut)
	if len(statut) > 60 {
		return shared.NewValidationError("statut", "statut doit contenir au maximum 60 caractères")
	}
	if err := s.repo.UpdateMemberStatus(ctx, id, paroissienID, statut); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditUpdate, id, map[string]any{"member": paroissienID, "statut": statut})
	return nil
}

func (s *Service) record(ctx context.Context, actor int64, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, Action: action, Entity: auditEntity, EntityID: strconv.FormatInt(id, 10), Meta: meta})
	if err != nil {
		s.logger.Warn("audit association", slog.String("action", action), slog.Any("error", err))
	}
}

func normalize(form AssociationForm) AssociationForm {
	form.Name = strings.TrimSpace(form.Name)
	form.Sigle = strings.ToUpper(strings.TrimSpace(form.Sigle))
	form.Description = strings.TrimSpace(form.Description)
	return form
}

func duplicateName(err error) error {
	if shared.IsDuplicate(err) {
		return shared.NewValidationError("name", "Une association porte déjà ce nom")
	}
	return err
}
