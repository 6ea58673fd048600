package finances

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Totals aggregates one period. Engagements count when their period overlaps
// the range; versements and offrandes when their date falls in it.
type Totals struct {
	Pledged         int64
	Received        int64
	EngagementCount int
	Versements      int64
	VersementCount  int
	Offrandes       int64
	OffrandeCount   int
}

// Collected is everything received: versements plus offrandes.
func (t Totals) Collected() int64 { return t.Versements + t.Offrandes }

// TypeTotal sums versements of one type.
type TypeTotal struct {
	Type  VersementType
	Total int64
	Count int
}

// MonthTotal holds one calendar month.
type MonthTotal struct {
	Month      int
	Label      string
	Versements int64
	Offrandes  int64
}

// AssociationTotal sums offrandes of one association.
type AssociationTotal struct {
	AssociationID int64
	Name          string
	Total         int64
	Count         int
}

// RecentVersement is a dashboard line.
type RecentVersement struct {
	ID             int64
	ParoissienName string
	Type           VersementType
	Somme          int64
	Date           time.Time
}

// RecentEngagement is a dashboard line.
type RecentEngagement struct {
	ID             int64
	ParoissienName string
	Dime           int64
	Cotisation     int64
	PeriodeStart   time.Time
	PeriodeEnd     time.Time
}

// StatsRepository runs read-only finance aggregates over [start, end).
type StatsRepository interface {
	Totals(ctx context.Context, start, end time.Time) (Totals, error)
	ByType(ctx context.Context, start, end time.Time) ([]TypeTotal, error)
	ByAssociation(ctx context.Context, start, end time.Time) ([]AssociationTotal, error)
	Monthly(ctx context.Context, year int) ([]MonthTotal, error)
	RecentVersements(ctx context.Context, limit int) ([]RecentVersement, error)
	RecentEngagements(ctx context.Context, limit int) ([]RecentEngagement, error)
}

type statsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository constructs the PostgreSQL aggregates.
func NewStatsRepository(pool *pgxpool.Pool) StatsRepository {
	return &statsRepository{pool: pool}
}

func (r *statsRepository) Totals(ctx context.Context, start, end time.Time) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `SELECT
    COALESCE((SELECT SUM(dime + cotisation) FROM engagements WHERE periode_start < $2 AND periode_end >= $1), 0),
    COALESCE((SELECT SUM(available_dime + available_cotisation) FROM engagements WHERE periode_start < $2 AND periode_end >= $1), 0),
    (SELECT COUNT(*) FROM engagements WHERE periode_start < $2 AND periode_end >= $1),
    COALESCE((SELECT SUM(somme) FROM versements WHERE date_versement >= $1 AND date_versement < $2), 0),
    (SELECT COUNT(*) FROM versements WHERE date_versement >= $1 AND date_versement < $2),
    COALESCE((SELECT SUM(somme) FROM offrandes WHERE offrande_day >= $1 AND offrande_day < $2), 0),
    (SELECT COUNT(*) FROM offrandes WHERE offrande_day >= $1 AND offrande_day < $2)`, start, end).
		Scan(&t.Pledged, &t.Received, &t.EngagementCount, &t.Versements, &t.VersementCount, &t.Offrandes, &t.OffrandeCount)
	return t, err
}

// ByType always returns every type, in display order.
func (r *statsRepository) ByType(ctx context.Context, start, end time.Time) ([]TypeTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT type, SUM(somme), COUNT(*) FROM versements
WHERE date_versement >= $1 AND date_versement < $2 GROUP BY type`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := map[VersementType]TypeTotal{}
	for rows.Next() {
		var tt TypeTotal
		if err := rows.Scan(&tt.Type, &tt.Total, &tt.Count); err != nil {
			return nil, err
		}
		found[tt.Type] = tt
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return FillTypes(found), nil
}

// FillTypes orders per-type totals, adding zero rows for missing types.
func FillTypes(found map[VersementType]TypeTotal) []TypeTotal {
	out := make([]TypeTotal, 0, len(VersementTypes))
	for _, t := range VersementTypes {
		tt := found[t]
		tt.Type = t
		out = append(out, tt)
	}
	return out
}

func (r *statsRepository) ByAssociation(ctx context.Context, start, end time.Time) ([]AssociationTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.name, COALESCE(SUM(o.somme), 0), COUNT(o.id)
FROM associations a
LEFT JOIN offrandes o ON o.association_id = a.id AND o.offrande_day >= $1 AND o.offrande_day < $2
GROUP BY a.id, a.name
HAVING COUNT(o.id) > 0 OR a.is_active
ORDER BY 3 DESC, a.name`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AssociationTotal
	for rows.Next() {
		var at AssociationTotal
		if err := rows.Scan(&at.AssociationID, &at.Name, &at.Total, &at.Count); err != nil {
			return nil, err
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

// Monthly returns twelve months of versement and offrande totals.
func (r *statsRepository) Monthly(ctx context.Context, year int) ([]MonthTotal, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	rows, err := r.pool.Query(ctx, `SELECT m, SUM(v), SUM(o) FROM (
    SELECT EXTRACT(MONTH FROM date_versement)::int AS m, somme AS v, 0::bigint AS o
    FROM versements WHERE date_versement >= $1 AND date_versement < $2
    UNION ALL
    SELECT EXTRACT(MONTH FROM offrande_day)::int, 0, somme
    FROM offrandes WHERE offrande_day >= $1 AND offrande_day < $2
) t GROUP BY m`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	months := EmptyMonths()
	for rows.Next() {
		var (
			m    int
			v, o int64
		)
		if err := rows.Scan(&m, &v, &o); err != nil {
			return nil, err
		}
		if m >= 1 && m <= 12 {
			months[m-1].Versements = v
			months[m-1].Offrandes = o
		}
	}
	return months, rows.Err()
}

// EmptyMonths returns twelve labelled zero months.
func EmptyMonths() []MonthTotal {
	out := make([]MonthTotal, 12)
	for i := range out {
		out[i] = MonthTotal{Month: i + 1, Label: MonthLabels[i]}
	}
	return out
}

func (r *statsRepository) RecentVersements(ctx context.Context, limit int) ([]RecentVersement, error) {
	rows, err := r.pool.Query(ctx, `SELECT v.id, p.name, v.type, v.somme, v.date_versement
FROM versements v JOIN paroissiens p ON p.id = v.paroissien_id
ORDER BY v.created_at DESC, v.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecentVersement
	for rows.Next() {
		var v RecentVersement
		if err := rows.Scan(&v.ID, &v.ParoissienName, &v.Type, &v.Somme, &v.Date); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *statsRepository) RecentEngagements(ctx context.Context, limit int) ([]RecentEngagement, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, p.name, e.dime, e.cotisation, e.periode_start, e.periode_end
FROM engagements e JOIN paroissiens p ON p.id = e.paroissien_id
ORDER BY e.created_at DESC, e.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecentEngagement
	for rows.Next() {
		var e RecentEngagement
		if err := rows.Scan(&e.ID, &e.ParoissienName, &e.Dime, &e.Cotisation, &e.PeriodeStart, &e.PeriodeEnd); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
