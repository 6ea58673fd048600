package offrandes

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paroisse/paroisse/internal/shared"
)

// Repository defines persistence for offrandes.
type Repository interface {
	List(ctx context.Context, filters ListFilters) (Page, error)
	Get(ctx context.Context, id int64) (Offrande, error)
	Create(ctx context.Context, o Offrande) (Offrande, error)
	Update(ctx context.Context, id int64, o Offrande) error
	Delete(ctx context.Context, id int64) error
	Export(ctx context.Context, start, end time.Time) ([]Offrande, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectOffrande = `SELECT o.id, o.association_id, a.name, o.somme, o.offrande_day, o.description,
    o.created_by, COALESCE(u.name, ''), o.created_at, o.updated_at
FROM offrandes o
JOIN associations a ON a.id = o.association_id
LEFT JOIN users u ON u.id = o.created_by`

func scanOffrande(row pgx.Row) (Offrande, error) {
	var o Offrande
	err := row.Scan(&o.ID, &o.AssociationID, &o.AssociationName, &o.Somme, &o.OffrandeDay, &o.Description,
		&o.CreatedBy, &o.CreatedByName, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *repository) List(ctx context.Context, filters ListFilters) (Page, error) {
	where := []string{"1=1"}
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filters.Search != "" {
		n := next("%" + filters.Search + "%")
		where = append(where, "(a.name ILIKE "+n+" OR o.description ILIKE "+n+")")
	}
	if filters.Period.Valid() {
		start, end := filters.Period.Range()
		where = append(where, "o.offrande_day >= "+next(start)+" AND o.offrande_day < "+next(end))
	}
	if filters.AssociationID > 0 {
		where = append(where, "o.association_id = "+next(filters.AssociationID))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var page Page
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(o.somme), 0)
FROM offrandes o JOIN associations a ON a.id = o.association_id`+clause, args...).Scan(&page.Total, &page.Sum)
	if err != nil {
		return Page{}, err
	}

	query := selectOffrande + clause + " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir) +
		" LIMIT " + next(filters.PerPage) + " OFFSET " + next(filters.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()
	for rows.Next() {
		o, err := scanOffrande(rows)
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, o)
	}
	return page, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Offrande, error) {
	o, err := scanOffrande(r.pool.QueryRow(ctx, selectOffrande+` WHERE o.id = $1`, id))
	if err != nil {
		return Offrande{}, shared.TranslatePgError(err)
	}
	return o, nil
}

func (r *repository) Create(ctx context.Context, o Offrande) (Offrande, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO offrandes (association_id, somme, offrande_day, description, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`,
		o.AssociationID, o.Somme, o.OffrandeDay, o.Description, o.CreatedBy).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Offrande{}, shared.TranslatePgError(err)
	}
	return o, nil
}

func (r *repository) Update(ctx context.Context, id int64, o Offrande) error {
	tag, err := r.pool.Exec(ctx, `UPDATE offrandes SET association_id = $1, somme = $2, offrande_day = $3,
    description = $4, updated_at = NOW()
WHERE id = $5`, o.AssociationID, o.Somme, o.OffrandeDay, o.Description, id)
	if err != nil {
		return shared.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM offrandes WHERE id = $1`, id)
	if err != nil {
		return shared.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Export(ctx context.Context, start, end time.Time) ([]Offrande, error) {
	rows, err := r.pool.Query(ctx, selectOffrande+` WHERE o.offrande_day >= $1 AND o.offrande_day < $2
ORDER BY o.offrande_day, o.id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Offrande
	for rows.Next() {
		o, err := scanOffrande(rows)
		if err != nil {
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
	case "somme":
		return "o.somme " + dir + ", o.id DESC"
	case "association":
		return "a.name " + dir + ", o.id DESC"
	default:
		return "o.offrande_day " + dir + ", o.id " + dir
	}
}
