package paroissiens

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paroisse/paroisse/internal/platform/db"
	"github.com/paroisse/paroisse/internal/shared"
)

// Repository defines persistence for paroissiens.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Paroissien, int, error)
	Get(ctx context.Context, id int64) (Paroissien, error)
	IDByMatricule(ctx context.Context, matricule string) (int64, error)
	Create(ctx context.Context, p Paroissien, associationIDs []int64) (Paroissien, error)
	Update(ctx context.Context, id int64, p Paroissien, associationIDs []int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	CountActive(ctx context.Context) (int, error)
	CountByCategorie(ctx context.Context) (map[string]int, error)
	Recent(ctx context.Context, limit int) ([]Paroissien, error)
	Options(ctx context.Context) ([]Option, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const paroissienColumns = `p.id, p.matricule, p.name, p.genre, p.categorie, p.situation, p.birthdate, p.birthplace,
    p.email, p.phone, p.address, p.school_level, p.service_place, p.baptise_date, p.confirm_date,
    p.adhesion_date, p.notes, p.is_active, p.created_at, p.updated_at`

func scanParoissien(row pgx.Row, extra ...any) (Paroissien, error) {
	var p Paroissien
	dest := []any{&p.ID, &p.Matricule, &p.Name, &p.Genre, &p.Categorie, &p.Situation, &p.Birthdate, &p.Birthplace,
		&p.Email, &p.Phone, &p.Address, &p.SchoolLevel, &p.ServicePlace, &p.BaptiseDate, &p.ConfirmDate,
		&p.AdhesionDate, &p.Notes, &p.IsActive, &p.CreatedAt, &p.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	return p, err
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Paroissien, int, error) {
	where := []string{"1=1"}
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filters.Search != "" {
		n := next("%" + filters.Search + "%")
		where = append(where, "(p.name ILIKE "+n+" OR p.matricule ILIKE "+n+" OR p.email ILIKE "+n+" OR p.phone ILIKE "+n+")")
	}
	if filters.Categorie != "" {
		where = append(where, "p.categorie = "+next(filters.Categorie))
	}
	if filters.Genre != "" {
		where = append(where, "p.genre = "+next(filters.Genre))
	}
	if filters.Situation != "" {
		where = append(where, "p.situation = "+next(filters.Situation))
	}
	if filters.AssociationID > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM association_paroissiens f WHERE f.paroissien_id = p.id AND f.association_id = "+next(filters.AssociationID)+")")
	}
	if filters.IsActive != nil {
		where = append(where, "p.is_active = "+next(*filters.IsActive))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM paroissiens p`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + paroissienColumns + `,
    COALESCE((SELECT a.name FROM association_paroissiens ap JOIN associations a ON a.id = ap.association_id
        WHERE ap.paroissien_id = p.id ORDER BY ap.is_primary DESC, a.name LIMIT 1), '')
FROM paroissiens p` + clause + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	query += " LIMIT " + next(filters.PerPage) + " OFFSET " + next(filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Paroissien
	for rows.Next() {
		var primary string
		p, err := scanParoissien(rows, &primary)
		if err != nil {
			return nil, 0, err
		}
		p.PrimaryAssociation = primary
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Paroissien, error) {
	p, err := scanParoissien(r.pool.QueryRow(ctx, `SELECT `+paroissienColumns+` FROM paroissiens p WHERE p.id = $1`, id))
	if err != nil {
		return Paroissien{}, shared.TranslatePgError(err)
	}
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.name, a.sigle, ap.is_primary, COALESCE(ap.statut, ''), ap.date_adhesion
FROM association_paroissiens ap
JOIN associations a ON a.id = ap.association_id
WHERE ap.paroissien_id = $1
ORDER BY ap.is_primary DESC, a.name`, id)
	if err != nil {
		return Paroissien{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var link AssociationLink
		if err := rows.Scan(&link.AssociationID, &link.Name, &link.Sigle, &link.IsPrimary, &link.Statut, &link.DateAdhesion); err != nil {
			return Paroissien{}, err
		}
		p.Associations = append(p.Associations, link)
	}
	return p, rows.Err()
}

func (r *repository) IDByMatricule(ctx context.Context, matricule string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM paroissiens WHERE upper(matricule) = upper($1)`, matricule).Scan(&id)
	return id, shared.TranslatePgError(err)
}

func (r *repository) Create(ctx context.Context, p Paroissien, associationIDs []int64) (Paroissien, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO paroissiens (matricule, name, genre, categorie, situation, birthdate, birthplace,
    email, phone, address, school_level, service_place, baptise_date, confirm_date, adhesion_date, notes, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING id, created_at, updated_at`,
			p.Matricule, p.Name, p.Genre, p.Categorie, p.Situation, p.Birthdate, p.Birthplace,
			p.Email, p.Phone, p.Address, p.SchoolLevel, p.ServicePlace, p.BaptiseDate, p.ConfirmDate, p.AdhesionDate,
			p.Notes, p.IsActive).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}
		return syncAssociations(ctx, tx, p.ID, associationIDs)
	})
	if err != nil {
		return Paroissien{}, shared.TranslatePgError(err)
	}
	return p, nil
}

func (r *repository) Update(ctx context.Context, id int64, p Paroissien, associationIDs []int64) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE paroissiens SET name = $1, genre = $2, categorie = $3, situation = $4, birthdate = $5,
    birthplace = $6, email = $7, phone = $8, address = $9, school_level = $10, service_place = $11,
    baptise_date = $12, confirm_date = $13, adhesion_date = $14, notes = $15, is_active = $16, updated_at = NOW()
WHERE id = $17`,
			p.Name, p.Genre, p.Categorie, p.Situation, p.Birthdate, p.Birthplace, p.Email, p.Phone, p.Address,
			p.SchoolLevel, p.ServicePlace, p.BaptiseDate, p.ConfirmDate, p.AdhesionDate, p.Notes, p.IsActive, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return syncAssociations(ctx, tx, id, associationIDs)
	})
	return shared.TranslatePgError(err)
}

// syncAssociations makes the affiliations match ids. Existing rows keep their
// statut and adhesion date; the first id becomes the primary association.
func syncAssociations(ctx context.Context, tx pgx.Tx, paroissienID int64, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM association_paroissiens WHERE paroissien_id = $1 AND NOT (association_id = ANY($2))`, paroissienID, ids); err != nil {
		return err
	}
	for i, associationID := range ids {
		_, err := tx.Exec(ctx, `INSERT INTO association_paroissiens (paroissien_id, association_id, is_primary)
VALUES ($1, $2, $3)
ON CONFLICT (paroissien_id, association_id) DO UPDATE SET is_primary = EXCLUDED.is_primary`, paroissienID, associationID, i == 0)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE paroissiens SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM paroissiens WHERE id = $1`, id)
	if err != nil {
		return shared.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM paroissiens WHERE is_active`).Scan(&n)
	return n, err
}

func (r *repository) CountByCategorie(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT categorie, COUNT(*) FROM paroissiens WHERE is_active GROUP BY categorie`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			categorie string
			n         int
		)
		if err := rows.Scan(&categorie, &n); err != nil {
			return nil, err
		}
		counts[categorie] = n
	}
	return counts, rows.Err()
}

func (r *repository) Recent(ctx context.Context, limit int) ([]Paroissien, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paroissienColumns+` FROM paroissiens p ORDER BY p.created_at DESC, p.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Paroissien
	for rows.Next() {
		p, err := scanParoissien(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Options(ctx context.Context) ([]Option, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, matricule, name FROM paroissiens WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Matricule, &o.Name); err != nil {
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
	case "matricule":
		return "p.matricule " + dir
	case "categorie":
		return "p.categorie " + dir + ", p.name ASC"
	case "created_at":
		return "p.created_at " + dir
	default:
		return "p.name " + dir
	}
}
