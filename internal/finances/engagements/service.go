package engagements

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/shared"
)

const auditEntity = "engagement"

// Service applies engagement rules.
type Service struct {
	repo      Repository
	audit     shared.AuditRecorder
	cache     finances.CacheBumper
	logger    *slog.Logger
	validator *shared.Validator
}

// NewService constructs a Service. cache may be nil.
func NewService(repo Repository, audit shared.AuditRecorder, cache finances.CacheBumper, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if cache == nil {
		cache = finances.NopBumper{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger, validator: shared.NewValidator()}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Engagement, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// Detail loads an engagement with its linked versements.
func (s *Service) Detail(ctx context.Context, id int64) (Engagement, []VersementLine, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return Engagement{}, nil, err
	}
	lines, err := s.repo.Versements(ctx, id)
	if err != nil {
		return Engagement{}, nil, err
	}
	return e, lines, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Engagement, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Options(ctx context.Context, paroissienID int64) ([]Option, error) {
	return s.repo.Options(ctx, paroissienID)
}

func (s *Service) Create(ctx context.Context, actor int64, form Form) (Engagement, error) {
	form.Notes = strings.TrimSpace(form.Notes)
	if err := s.validate(form); err != nil {
		return Engagement{}, err
	}
	created, err := s.repo.Create(ctx, fromForm(form))
	if err != nil {
		return Engagement{}, paroissienMissing(err)
	}
	s.changed(ctx, actor, shared.AuditCreate, created.ID, map[string]any{"paroissien_id": form.ParoissienID, "pledged": created.Pledged()})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor, id int64, form Form) error {
	form.Notes = strings.TrimSpace(form.Notes)
	if err := s.validate(form); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, fromForm(form)); err != nil {
		return paroissienMissing(err)
	}
	s.changed(ctx, actor, shared.AuditUpdate, id, map[string]any{"paroissien_id": form.ParoissienID})
	return nil
}

// Delete removes the engagement. Linked versements are kept and unlinked.
func (s *Service) Delete(ctx context.Context, actor, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, actor, shared.AuditDelete, id, nil)
	return nil
}

func (s *Service) validate(form Form) error {
	if err := s.validator.Struct(form); err != nil {
		return err
	}
	switch {
	case form.PeriodeStart.IsZero():
		return shared.NewValidationError("periode_start", "Date de début requise")
	case form.PeriodeEnd.IsZero():
		return shared.NewValidationError("periode_end", "Date de fin requise")
	case form.PeriodeEnd.Before(form.PeriodeStart):
		return shared.NewValidationError("periode_end", "La date de fin doit suivre la date de début")
	}
	return nil
}

// paroissienMissing turns a foreign key failure into a field error.
func paroissienMissing(err error) error {
	if errors.Is(err, shared.ErrConflict) {
		return shared.NewValidationError("paroissien_id", "Paroissien introuvable")
	}
	return err
}

func (s *Service) changed(ctx context.Context, actor int64, action string, id int64, meta map[string]any) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump dashboard cache", slog.Any("error", err))
	}
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, Action: action, Entity: auditEntity, EntityID: strconv.FormatInt(id, 10), Meta: meta})
	if err != nil {
		s.logger.Warn("audit engagement", slog.String("action", action), slog.Any("error", err))
	}
}

func fromForm(f Form) Engagement {
	return Engagement{
		ParoissienID:    f.ParoissienID,
		Dime:            f.Dime,
		Cotisation:      f.Cotisation,
		DetteDime:       f.DetteDime,
		DetteCotisation: f.DetteCotisation,
		PeriodeStart:    f.PeriodeStart,
		PeriodeEnd:      f.PeriodeEnd,
		Notes:           f.Notes,
	}
}
