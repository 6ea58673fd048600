package users

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
)

const auditEntity = "user"

// Service applies account rules.
type Service struct {
	repo      Repository
	audit     shared.AuditRecorder
	logger    *slog.Logger
	validator *shared.Validator
	cost      int
}

// NewService builds Service instance.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, validator: shared.NewValidator(), cost: bcrypt.DefaultCost}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]User, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create hashes the password with bcrypt and stores the account.
func (s *Service) Create(ctx context.Context, actor int64, form Form) (User, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.ToLower(strings.TrimSpace(form.Email))
	if err := s.validator.Struct(form); err != nil {
		return User{}, err
	}
	role, ok := rbac.ParseRole(form.Role)
	if !ok {
		return User{}, shared.NewValidationError("role", "Rôle inconnu")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	created, err := s.repo.Create(ctx, User{Name: form.Name, Email: form.Email, Role: role, IsActive: form.IsActive}, string(hash))
	if err != nil {
		if shared.IsDuplicate(err) {
			return User{}, shared.NewValidationError("email", "Un compte utilise déjà cet email")
		}
		return User{}, err
	}
	s.record(ctx, actor, shared.AuditCreate, created.ID, map[string]any{"email": created.Email, "role": string(created.Role)})
	return created, nil
}

// Activate re-enables sign in.
func (s *Service) Activate(ctx context.Context, actor, id int64) error {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditRestore, id, nil)
	return nil
}

// Deactivate blocks sign in. Nobody can lock themselves out, and the last
// active super administrator stays active.
func (s *Service) Deactivate(ctx context.Context, actor, id int64) error {
	if err := s.guard(ctx, actor, id, "désactiver"); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditDelete, id, map[string]any{"soft": true})
	return nil
}

// Delete removes the account under the same protections as Deactivate.
func (s *Service) Delete(ctx context.Context, actor, id int64) error {
	if err := s.guard(ctx, actor, id, "supprimer"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditDelete, id, map[string]any{"soft": false})
	return nil
}

func (s *Service) guard(ctx context.Context, actor, id int64, verb string) error {
	if actor == id {
		return &shared.ConflictError{Message: "Vous ne pouvez pas " + verb + " votre propre compte"}
	}
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if target.Role != rbac.RoleSuperAdmin || !target.IsActive {
		return nil
	}
	n, err := s.repo.CountActiveRole(ctx, string(rbac.RoleSuperAdmin))
	if err != nil {
		return err
	}
	if n <= 1 {
		return &shared.ConflictError{Message: "Le dernier super administrateur actif doit être conservé"}
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor int64, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, Action: action, Entity: auditEntity, EntityID: strconv.FormatInt(id, 10), Meta: meta})
	if err != nil {
		s.logger.Warn("audit user", slog.String("action", action), slog.Any("error", err))
	}
}
