package versements

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/platform/db"
	"github.com/paroisse/paroisse/internal/shared"
)

// Repository defines persistence for versements. Writes keep the linked
// engagement counters in step inside the same transaction.
type Repository interface {
	List(ctx context.Context, filters ListFilters) (Page, error)
	Get(ctx context.Context, id int64) (Versement, error)
	Create(ctx context.Context, v Versement) (Versement, error)
	Update(ctx context.Context, id int64, v Versement) error
	Delete(ctx context.Context, id int64) error
	Export(ctx context.Context, start, end time.Time) ([]Versement, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectVersement = `SELECT v.id, v.paroissien_id, p.name, p.matricule, v.engagement_id, v.type, v.somme,
    v.date_versement, v.reference, v.notes, v.created_by, COALESCE(u.name, ''), v.created_at, v.updated_at
FROM versements v
JOIN paroissiens p ON p.id = v.paroissien_id
LEFT JOIN users u ON u.id = v.created_by`

func scanVersement(row pgx.Row) (Versement, error) {
	var v Versement
	err := row.Scan(&v.ID, &v.ParoissienID, &v.ParoissienName, &v.ParoissienMatricule, &v.EngagementID, &v.Type,
		&v.Somme, &v.DateVersement, &v.Reference, &v.Notes, &v.CreatedBy, &v.CreatedByName, &v.CreatedAt, &v.UpdatedAt)
	return v, err
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
		where = append(where, "(p.name ILIKE "+n+" OR p.matricule ILIKE "+n+" OR v.reference ILIKE "+n+")")
	}
	if filters.Period.Valid() {
		start, end := filters.Period.Range()
		where = append(where, "v.date_versement >= "+next(start)+" AND v.date_versement < "+next(end))
	}
	if filters.Type != "" {
		where = append(where, "v.type = "+next(string(filters.Type)))
	}
	if filters.ParoissienID > 0 {
		where = append(where, "v.paroissien_id = "+next(filters.ParoissienID))
	}
	if filters.EngagementID > 0 {
		where = append(where, "v.engagement_id = "+next(filters.EngagementID))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var page Page
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(v.somme), 0)
FROM versements v JOIN paroissiens p ON p.id = v.paroissien_id`+clause, args...).Scan(&page.Total, &page.Sum)
	if err != nil {
		return Page{}, err
	}

	query := selectVersement + clause + " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir) +
		" LIMIT " + next(filters.PerPage) + " OFFSET " + next(filters.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()
	for rows.Next() {
		v, err := scanVersement(rows)
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, v)
	}
	return page, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Versement, error) {
	v, err := scanVersement(r.pool.QueryRow(ctx, selectVersement+` WHERE v.id = $1`, id))
	if err != nil {
		return Versement{}, shared.TranslatePgError(err)
	}
	return v, nil
}

func (r *repository) Create(ctx context.Context, v Versement) (Versement, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := checkEngagement(ctx, tx, v); err != nil {
			return err
		}
		err := tx.QueryRow(ctx, `INSERT INTO versements (paroissien_id, engagement_id, type, somme, date_versement,
    reference, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, updated_at`,
			v.ParoissienID, v.EngagementID, string(v.Type), v.Somme, v.DateVersement, v.Reference, v.Notes, v.CreatedBy).
			Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return err
		}
		return applyAdjustments(ctx, tx, finances.PlanAdjustments(nil, v.Effect()))
	})
	if err != nil {
		return Versement{}, shared.TranslatePgError(err)
	}
	return v, nil
}

func (r *repository) Update(ctx context.Context, id int64, v Versement) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		old, err := lockVersement(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkEngagement(ctx, tx, v); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE versements SET paroissien_id = $1, engagement_id = $2, type = $3, somme = $4,
    date_versement = $5, reference = $6, notes = $7, updated_at = NOW()
WHERE id = $8`,
			v.ParoissienID, v.EngagementID, string(v.Type), v.Somme, v.DateVersement, v.Reference, v.Notes, id)
		if err != nil {
			return err
		}
		return applyAdjustments(ctx, tx, finances.PlanAdjustments(old.Effect(), v.Effect()))
	})
	return shared.TranslatePgError(err)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		old, err := lockVersement(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM versements WHERE id = $1`, id); err != nil {
			return err
		}
		return applyAdjustments(ctx, tx, finances.PlanAdjustments(old.Effect(), nil))
	})
	return shared.TranslatePgError(err)
}

// Export returns every versement dated in [start, end), oldest first.
func (r *repository) Export(ctx context.Context, start, end time.Time) ([]Versement, error) {
	rows, err := r.pool.Query(ctx, selectVersement+` WHERE v.date_versement >= $1 AND v.date_versement < $2
ORDER BY v.date_versement, v.id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Versement
	for rows.Next() {
		v, err := scanVersement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func lockVersement(ctx context.Context, tx pgx.Tx, id int64) (Versement, error) {
	var v Versement
	err := tx.QueryRow(ctx, `SELECT id, engagement_id, type, somme FROM versements WHERE id = $1 FOR UPDATE`, id).
		Scan(&v.ID, &v.EngagementID, &v.Type, &v.Somme)
	if err != nil {
		return Versement{}, shared.TranslatePgError(err)
	}
	return v, nil
}

// checkEngagement refuses a link to another member's engagement.
func checkEngagement(ctx context.Context, tx pgx.Tx, v Versement) error {
	if v.EngagementID == nil {
		return nil
	}
	var owner int64
	err := tx.QueryRow(ctx, `SELECT paroissien_id FROM engagements WHERE id = $1`, *v.EngagementID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NewValidationError("engagement_id", "Engagement introuvable")
		}
		return err
	}
	if owner != v.ParoissienID {
		return shared.NewValidationError("engagement_id", "Cet engagement appartient à un autre paroissien")
	}
	return nil
}

// applyAdjustments moves engagement counters. Adjustments arrive ordered by
// engagement id, so row locks are always taken in the same order.
func applyAdjustments(ctx context.Context, tx pgx.Tx, adjustments []finances.Adjustment) error {
	for _, adj := range adjustments {
		column := string(adj.Counter)
		_, err := tx.Exec(ctx, `UPDATE engagements SET `+column+` = `+column+` + $1, updated_at = NOW() WHERE id = $2`,
			adj.Delta, adj.EngagementID)
		if err != nil {
			return err
		}
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "somme":
		return "v.somme " + dir + ", v.id DESC"
	case "paroissien":
		return "p.name " + dir + ", v.id DESC"
	case "type":
		return "v.type " + dir + ", v.id DESC"
	default:
		return "v.date_versement " + dir + ", v.id " + dir
	}
}
