package versements

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

const auditEntity = "versement"

// Service applies versement rules.
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

func (s *Service) Get(ctx context.Context, id int64) (Versement, error) {
	return s.repo.Get(ctx, id)
}

// Export lists the versements of a period for CSV download.
func (s *Service) Export(ctx context.Context, period shared.FiscalPeriod) ([]Versement, error) {
	start, end := period.Range()
	return s.repo.Export(ctx, start, end)
}

// Create records a payment and credits the linked engagement counter.
func (s *Service) Create(ctx context.Context, actor int64, form Form) (Versement, error) {
	v, err := s.prepare(form)
	if err != nil {
		return Versement{}, err
	}
	if actor > 0 {
		v.CreatedBy = &actor
	}
	created, err := s.repo.Create(ctx, v)
	if err != nil {
		return Versement{}, referenceMissing(err)
	}
	s.changed(ctx, actor, shared.AuditCreate, created.ID, map[string]any{
		"type": string(created.Type), "somme": created.Somme, "engagement_id": form.EngagementID,
	})
	return created, nil
}

// Update replaces the versement; its previous effect on engagement counters
// is reversed before the new one applies.
func (s *Service) Update(ctx context.Context, actor, id int64, form Form) error {
	v, err := s.prepare(form)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, v); err != nil {
		return referenceMissing(err)
	}
	s.changed(ctx, actor, shared.AuditUpdate, id, map[string]any{"type": string(v.Type), "somme": v.Somme})
	return nil
}

// Delete removes the versement and reverses its counter effect.
func (s *Service) Delete(ctx context.Context, actor, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, actor, shared.AuditDelete, id, nil)
	return nil
}

func (s *Service) prepare(form Form) (Versement, error) {
	form.Type = strings.ToUpper(strings.TrimSpace(form.Type))
	form.Reference = strings.TrimSpace(form.Reference)
	form.Notes = strings.TrimSpace(form.Notes)
	if err := s.validator.Struct(form); err != nil {
		return Versement{}, err
	}
	if form.DateVersement.IsZero() {
		return Versement{}, shared.NewValidationError("date_versement", "Date du versement requise")
	}
	v := Versement{
		ParoissienID:  form.ParoissienID,
		Type:          finances.VersementType(form.Type),
		Somme:         form.Somme,
		DateVersement: dateOnly(form.DateVersement),
		Reference:     form.Reference,
		Notes:         form.Notes,
	}
	if form.EngagementID > 0 {
		id := form.EngagementID
		v.EngagementID = &id
	}
	return v, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// referenceMissing turns a foreign key failure into a field error.
func referenceMissing(err error) error {
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
		s.logger.Warn("audit versement", slog.String("action", action), slog.Any("error", err))
	}
}
