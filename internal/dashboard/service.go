package dashboard

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paroisse/paroisse/internal/associations"
	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/paroissiens"
	"github.com/paroisse/paroisse/internal/shared"
)

const (
	recentLimit   = 5
	activityLimit = 8
)

// MemberSource is the paroissien side of the dashboard.
type MemberSource interface {
	CountActive(ctx context.Context) (int, error)
	CountByCategorie(ctx context.Context) (map[string]int, error)
	Recent(ctx context.Context, limit int) ([]paroissiens.Paroissien, error)
}

// AssociationSource is the association side of the dashboard.
type AssociationSource interface {
	Stats(ctx context.Context) (associations.Stats, error)
}

// ActivitySource lists recent audit rows.
type ActivitySource interface {
	Recent(ctx context.Context, limit int) ([]shared.AuditLog, error)
}

// Cache is the versioned JSON cache the aggregates are kept in.
type Cache interface {
	Key(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
}

// CategorieCount is one slice of the members-by-categorie card.
type CategorieCount struct {
	Categorie string
	Label     string
	Count     int
}

// RecentMember is a dashboard line.
type RecentMember struct {
	ID        int64
	Matricule string
	Name      string
	Categorie string
	CreatedAt time.Time
}

// Summary is visible to every role.
type Summary struct {
	ActiveMembers      int
	ActiveAssociations int
	ByCategorie        []CategorieCount
	RecentMembers      []RecentMember
}

// FinanceSummary is only loaded for roles holding access-finances.
type FinanceSummary struct {
	Year              int
	Totals            finances.Totals
	Monthly           []finances.MonthTotal
	ByType            []finances.TypeTotal
	RecentVersements  []finances.RecentVersement
	RecentEngagements []finances.RecentEngagement
}

// Service aggregates dashboard data concurrently and caches the result.
type Service struct {
	members      MemberSource
	associations AssociationSource
	finances     finances.StatsRepository
	activity     ActivitySource
	cache        Cache
	logger       *slog.Logger
}

// NewService wires the sources. cache and activity may be nil.
func NewService(members MemberSource, associations AssociationSource, stats finances.StatsRepository, activity ActivitySource, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{members: members, associations: associations, finances: stats, activity: activity, cache: cache, logger: logger}
}

// Summary returns the member and association cards.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	return fetch(ctx, s, s.loadSummary, "summary")
}

// Finance returns the finance cards of year.
func (s *Service) Finance(ctx context.Context, year int) (FinanceSummary, error) {
	return fetch(ctx, s, func(ctx context.Context) (FinanceSummary, error) {
		return s.loadFinance(ctx, year)
	}, "finance", strconv.Itoa(year))
}

// Activity lists the latest audit rows. It is never cached.
func (s *Service) Activity(ctx context.Context) ([]shared.AuditLog, error) {
	if s.activity == nil {
		return nil, nil
	}
	return s.activity.Recent(ctx, activityLimit)
}

// Warm fills the cache for the current version.
func (s *Service) Warm(ctx context.Context, year int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.Summary(gctx)
		return err
	})
	g.Go(func() error {
		_, err := s.Finance(gctx, year)
		return err
	})
	return g.Wait()
}

// fetch reads a value from the cache, running load on a miss. A cache that
// cannot build a key is bypassed.
func fetch[T any](ctx context.Context, s *Service, load func(context.Context) (T, error), parts ...string) (T, error) {
	if s.cache != nil {
		key, err := s.cache.Key(ctx, append([]string{"dashboard"}, parts...)...)
		if err == nil {
			var out T
			err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) { return load(ctx) })
			return out, err
		}
		s.logger.Warn("dashboard cache unavailable", slog.Any("error", err))
	}
	return load(ctx)
}

func (s *Service) loadSummary(ctx context.Context) (Summary, error) {
	var (
		out    Summary
		counts map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.ActiveMembers, err = s.members.CountActive(gctx)
		return err
	})
	g.Go(func() error {
		stats, err := s.associations.Stats(gctx)
		out.ActiveAssociations = stats.Active
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.members.CountByCategorie(gctx)
		return err
	})
	g.Go(func() error {
		recent, err := s.members.Recent(gctx, recentLimit)
		for _, p := range recent {
			out.RecentMembers = append(out.RecentMembers, RecentMember{
				ID: p.ID, Matricule: p.Matricule, Name: p.Name, Categorie: p.CategorieLabel(), CreatedAt: p.CreatedAt,
			})
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	for _, c := range paroissiens.Categories {
		out.ByCategorie = append(out.ByCategorie, CategorieCount{Categorie: c.Value, Label: c.Label, Count: counts[c.Value]})
	}
	return out, nil
}

func (s *Service) loadFinance(ctx context.Context, year int) (FinanceSummary, error) {
	out := FinanceSummary{Year: year}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Totals, err = s.finances.Totals(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		out.Monthly, err = s.finances.Monthly(gctx, year)
		return err
	})
	g.Go(func() error {
		var err error
		out.ByType, err = s.finances.ByType(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		out.RecentVersements, err = s.finances.RecentVersements(gctx, recentLimit)
		return err
	})
	g.Go(func() error {
		var err error
		out.RecentEngagements, err = s.finances.RecentEngagements(gctx, recentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return FinanceSummary{}, err
	}
	return out, nil
}
