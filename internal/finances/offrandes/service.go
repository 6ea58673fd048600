package offrandes

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/shared"
)

const auditEntity = "offrande"

// Service applies offrande rules.
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

func (s *Service) List(ctx context.Context, filters ListFilters) (Page, shared.Pagination, error) {
	page, err := s.repo.List(ctx, filters)
	if err != nil {
		return Page{}, shared.Pagination{}, err
	}
	return page, shared.NewPagination(filters.Page, filters.PerPage, page.Total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Offrande, error) {
	return s.repo.Get(ctx, id)
}

// Export lists the offrandes of a period for CSV download.
func (s *Service) Export(ctx context.Context, period shared.FiscalPeriod) ([]Offrande, error) {
	start, end := period.Range()
	return s.repo.Export(ctx, start, end)
}

func (s *Service) Create(ctx context.Context, actor int64, form Form) (Offrande, error) {
	o, err := s.prepare(form)
	if err != nil {
		return Offrande{}, err
	}
	if actor > 0 {
		o.CreatedBy = &actor
	}
	created, err := s.repo.Create(ctx, o)
	if err != nil {
		return Offrande{}, associationMissing(err)
	}
	s.changed(ctx, actor, shared.AuditCreate, created.ID, map[string]any{"association_id": o.AssociationID, "somme": o.Somme})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor, id int64, form Form) error {
	o, err := s.prepare(form)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, o); err != nil {
		return associationMissing(err)
	}
	s.changed(ctx, actor, shared.AuditUpdate, id, map[string]any{"association_id": o.AssociationID, "somme": o.Somme})
	return nil
}

func (s *Service) Delete(ctx context.Context, actor, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, actor, shared.AuditDelete, id, nil)
	return nil
}

func (s *Service) prepare(form Form) (Offrande, error) {
	form.Description = strings.TrimSpace(form.Description)
	if err := s.validator.Struct(form); err != nil {
		return Offrande{}, err
	}
	if form.OffrandeDay.IsZero() {
		return Offrande{}, shared.NewValidationError("offrande_day", "Date de l'offrande requise")
	}
	day := form.OffrandeDay
	return Offrande{
		AssociationID: form.AssociationID,
		Somme:         form.Somme,
		OffrandeDay:   time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		Description:   form.Description,
	}, nil
}

func associationMissing(err error) error {
	if errors.Is(err, shared.ErrConflict) {
		return shared.NewValidationError("association_id", "Association introuvable")
	}
	return err
}

func (s *Service) changed(ctx context.Context, actor int64, action string, id int64, meta map[string]any) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump dashboard cache", slog.Any("error", err))
	}
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, Action: action, Entity: auditEntity, EntityID: strconv.FormatInt(id, 10), Meta: meta})
	if err != nil {
		s.logger.Warn("audit offrande", slog.String("action", action), slog.Any("error", err))
	}
}
