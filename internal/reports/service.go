// Package reports builds the yearly finance report and its exports.
package reports

import (
	"context"
	"html/template"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paroisse/paroisse/internal/charts"
	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/finances/offrandes"
	"github.com/paroisse/paroisse/internal/finances/versements"
	"github.com/paroisse/paroisse/internal/shared"
)

// VersementSource lists the versements of a period.
type VersementSource interface {
	Export(ctx context.Context, period shared.FiscalPeriod) ([]versements.Versement, error)
}

// OffrandeSource lists the offrandes of a period.
type OffrandeSource interface {
	Export(ctx context.Context, period shared.FiscalPeriod) ([]offrandes.Offrande, error)
}

// Quarter is one row group of the quarterly table.
type Quarter struct {
	Quarter int
	Label   string
	Totals  finances.Totals
	ByType  []finances.TypeTotal
}

// Report is the content of /rapports for one year.
type Report struct {
	Year          int
	Totals        finances.Totals
	ByType        []finances.TypeTotal
	Quarters      []Quarter
	ByAssociation []finances.AssociationTotal
	Monthly       []finances.MonthTotal
	GeneratedAt   time.Time
}

// TypeSum adds the yearly amount of every type.
func (r Report) TypeSum() int64 {
	var sum int64
	for _, t := range r.ByType {
		sum += t.Total
	}
	return sum
}

// AssociationSum adds every association offering.
func (r Report) AssociationSum() int64 {
	var sum int64
	for _, a := range r.ByAssociation {
		sum += a.Total
	}
	return sum
}

// Service assembles reports and export rows.
type Service struct {
	stats      finances.StatsRepository
	versements VersementSource
	offrandes  OffrandeSource
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the report sources.
func NewService(stats finances.StatsRepository, versements VersementSource, offrandes OffrandeSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{stats: stats, versements: versements, offrandes: offrandes, logger: logger, now: time.Now}
}

// Build aggregates year. The four quarters run alongside the yearly queries.
func (s *Service) Build(ctx context.Context, year int) (Report, error) {
	out := Report{Year: year, Quarters: make([]Quarter, 4), GeneratedAt: s.now()}
	start, end := shared.FiscalPeriod{Year: year}.Range()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Totals, err = s.stats.Totals(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		out.ByType, err = s.stats.ByType(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		out.ByAssociation, err = s.stats.ByAssociation(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		out.Monthly, err = s.stats.Monthly(gctx, year)
		return err
	})
	for i := range out.Quarters {
		i := i
		period := shared.FiscalPeriod{Year: year, Quarter: i + 1}
		out.Quarters[i] = Quarter{Quarter: period.Quarter, Label: shared.QuarterLabel(period.Quarter)}
		g.Go(func() error {
			qs, qe := period.Range()
			totals, err := s.stats.Totals(gctx, qs, qe)
			if err != nil {
				return err
			}
			byType, err := s.stats.ByType(gctx, qs, qe)
			if err != nil {
				return err
			}
			out.Quarters[i].Totals = totals
			out.Quarters[i].ByType = byType
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return out, nil
}

// Versements lists the versement export rows of period.
func (s *Service) Versements(ctx context.Context, period shared.FiscalPeriod) ([]versements.Versement, error) {
	return s.versements.Export(ctx, period)
}

// Offrandes lists the offrande export rows of period.
func (s *Service) Offrandes(ctx context.Context, period shared.FiscalPeriod) ([]offrandes.Offrande, error) {
	return s.offrandes.Export(ctx, period)
}

// CumulativeChart plots running versement and offrande totals through the year.
func CumulativeChart(months []finances.MonthTotal) (template.HTML, error) {
	if len(months) == 0 {
		months = finances.EmptyMonths()
	}
	labels := make([]string, len(months))
	v := make([]int64, len(months))
	o := make([]int64, len(months))
	for i, m := range months {
		labels[i] = m.Label
		v[i] = m.Versements
		o[i] = m.Offrandes
	}
	return charts.Line(labels, []charts.Series{
		{Name: "Versements cumulés", Values: charts.Cumulative(v)},
		{Name: "Offrandes cumulées", Values: charts.Cumulative(o)},
	}, charts.Options{Title: "Collecte cumulée", Description: "Montants reçus depuis janvier"})
}
