package engagements

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paroisse/paroisse/internal/shared"
)

// Repository defines persistence for engagements.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Engagement, int, error)
	Get(ctx context.Context, id int64) (Engagement, error)
	Versements(ctx context.Context, id int64) ([]VersementLine, error)
	Create(ctx context.Context, e Engagement) (Engagement, error)
	Update(ctx context.Context, id int64, e Engagement) error
	Delete(ctx context.Context, id int64) error
	Options(ctx context.Context, paroissienID int64) ([]Option, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectEngagement = `SELECT e.id, e.paroissien_id, p.name, p.matricule, e.dime, e.cotisation, e.dette_dime,
    e.dette_cotisation, e.available_dime, e.available_cotisation, e.available_dette_dime,
    e.available_dette_cotisation, e.periode_start, e.periode_end, e.notes,
    (SELECT COUNT(*) FROM versements v WHERE v.engagement_id = e.id), e.created_at, e.updated_at
FROM engagements e
JOIN paroissiens p ON p.id = e.paroissien_id`

func scanEngagement(row pgx.Row) (Engagement, error) {
	var e Engagement
	err := row.Scan(&e.ID, &e.ParoissienID, &e.ParoissienName, &e.ParoissienMatricule, &e.Dime, &e.Cotisation,
		&e.DetteDime, &e.DetteCotisation, &e.AvailableDime, &e.AvailableCotisation, &e.AvailableDetteDime,
		&e.AvailableDetteCotisation, &e.PeriodeStart, &e.PeriodeEnd, &e.Notes, &e.VersementCount,
		&e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Engagement, int, error) {
	where := []string{"1=1"}
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filters.Search != "" {
		n := next("%" + filters.Search + "%")
		where = append(where, "(p.name ILIKE "+n+" OR p.matricule ILIKE "+n+")")
	}
	if filters.Period.Valid() {
		start, end := filters.Period.Range()
		where = append(where, "e.periode_start < "+next(end)+" AND e.periode_end >= "+next(start))
	}
	if filters.ParoissienID > 0 {
		where = append(where, "e.paroissien_id = "+next(filters.ParoissienID))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM engagements e JOIN paroissiens p ON p.id = e.paroissien_id`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectEngagement + clause + " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir) +
		" LIMIT " + next(filters.PerPage) + " OFFSET " + next(filters.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Engagement, error) {
	e, err := scanEngagement(r.pool.QueryRow(ctx, selectEngagement+` WHERE e.id = $1`, id))
	if err != nil {
		return Engagement{}, shared.TranslatePgError(err)
	}
	return e, nil
}

func (r *repository) Versements(ctx context.Context, id int64) ([]VersementLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, type, somme, date_versement, reference
FROM versements WHERE engagement_id = $1 ORDER BY date_versement DESC, id DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VersementLine
	for rows.Next() {
		var v VersementLine
		if err := rows.Scan(&v.ID, &v.Type, &v.Somme, &v.Date, &v.Reference); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, e Engagement) (Engagement, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO engagements (paroissien_id, dime, cotisation, dette_dime, dette_cotisation,
    periode_start, periode_end, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, updated_at`,
		e.ParoissienID, e.Dime, e.Cotisation, e.DetteDime, e.DetteCotisation, e.PeriodeStart, e.PeriodeEnd, e.Notes).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Engagement{}, shared.TranslatePgError(err)
	}
	return e, nil
}

// Update leaves the available counters alone; only versements move them.
func (r *repository) Update(ctx context.Context, id int64, e Engagement) error {
	tag, err := r.pool.Exec(ctx, `UPDATE engagements SET paroissien_id = $1, dime = $2, cotisation = $3, dette_dime = $4,
    dette_cotisation = $5, periode_start = $6, periode_end = $7, notes = $8, updated_at = NOW()
WHERE id = $9`,
		e.ParoissienID, e.Dime, e.Cotisation, e.DetteDime, e.DetteCotisation, e.PeriodeStart, e.PeriodeEnd, e.Notes, id)
	if err != nil {
		return shared.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM engagements WHERE id = $1`, id)
	if err != nil {
		return shared.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Options lists engagements, most recent period first; paroissienID > 0
// restricts them to one member.
func (r *repository) Options(ctx context.Context, paroissienID int64) ([]Option, error) {
	query := `SELECT e.id, e.paroissien_id, p.name, e.periode_start, e.periode_end
FROM engagements e JOIN paroissiens p ON p.id = e.paroissien_id`
	args := []any{}
	if paroissienID > 0 {
		query += ` WHERE e.paroissien_id = $1`
		args = append(args, paroissienID)
	}
	query += ` ORDER BY e.periode_start DESC, p.name LIMIT 500`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.ParoissienID, &o.ParoissienName, &o.PeriodeStart, &o.PeriodeEnd); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "paroissien":
		return "p.name " + dir + ", e.id DESC"
	case "dime":
		return "e.dime " + dir + ", e.id DESC"
	default:
		return "e.periode_start " + dir + ", e.id DESC"
	}
}
