package associations

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paroisse/paroisse/internal/shared"
)

// Repository defines persistence for associations and memberships.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Association, int, error)
	Get(ctx context.Context, id int64) (Association, error)
	Members(ctx context.Context, id int64) ([]Member, error)
	Candidates(ctx context.Context, id int64) ([]Candidate, error)
	Create(ctx context.Context, a Association) (Association, error)
	Update(ctx context.Context, id int64, a Association) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	CountMembers(ctx context.Context, id int64) (int, error)
	HasMember(ctx context.Context, id, paroissienID int64) (bool, error)
	AddMember(ctx context.Context, id int64, m MemberForm) error
	RemoveMember(ctx context.Context, id, paroissienID int64) error
	UpdateMemberStatus(ctx context.Context, id, paroissienID int64, statut string) error
	Options(ctx context.Context) ([]Option, error)
	Stats(ctx context.Context) (Stats, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectAssociation = `SELECT a.id, a.name, a.sigle, a.description, a.is_active, a.created_at, a.updated_at,
    (SELECT COUNT(*) FROM association_paroissiens ap WHERE ap.association_id = a.id),
    (SELECT COUNT(*) FROM offrandes o WHERE o.association_id = a.id)
FROM associations a`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Association, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where = append(where, "(a.name ILIKE $"+n+" OR a.sigle ILIKE $"+n+")")
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where = append(where, "a.is_active = $"+strconv.Itoa(len(args)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM associations a`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectAssociation + clause + " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)
	args = append(args, filters.PerPage, filters.Offset())
	query += " LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.ID, &a.Name, &a.Sigle, &a.Description, &a.IsActive, &a.CreatedAt, &a.UpdatedAt, &a.MemberCount, &a.OffrandeCount); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Association, error) {
	var a Association
	err := r.pool.QueryRow(ctx, selectAssociation+` WHERE a.id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Sigle, &a.Description, &a.IsActive, &a.CreatedAt, &a.UpdatedAt, &a.MemberCount, &a.OffrandeCount)
	if err != nil {
		return Association{}, shared.TranslatePgError(err)
	}
	return a, nil
}

func (r *repository) Members(ctx context.Context, id int64) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.matricule, p.name, p.phone, p.is_active, ap.is_primary, COALESCE(ap.statut, ''), ap.date_adhesion
FROM association_paroissiens ap
JOIN paroissiens p ON p.id = ap.paroissien_id
WHERE ap.association_id = $1
ORDER BY ap.is_primary DESC, p.name ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ParoissienID, &m.Matricule, &m.Name, &m.Phone, &m.IsActive, &m.IsPrimary, &m.Statut, &m.DateAdhesion); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) Candidates(ctx context.Context, id int64) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.matricule, p.name FROM paroissiens p
WHERE p.is_active AND NOT EXISTS (
    SELECT 1 FROM association_paroissiens ap WHERE ap.paroissien_id = p.id AND ap.association_id = $1)
ORDER BY p.name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Matricule, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, a Association) (Association, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO associations (name, sigle, description, is_active)
VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`, a.Name, a.Sigle, a.Description, a.IsActive).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Association{}, shared.TranslatePgError(err)
	}
	return a, nil
}

func (r *repository) Update(ctx context.Context, id int64, a Association) error {
	tag, err := r.pool.Exec(ctx, `UPDATE associations SET name = $1, sigle = $2, description = $3, is_active = $4, updated_at = NOW()
WHERE id = $5`, a.Name, a.Sigle, a.Description, a.IsActive, id)
	if err != nil {
		return shared.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE associations SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM associations WHERE id = $1`, id)
	if err != nil {
		return shared.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) CountMembers(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM association_paroissiens WHERE association_id = $1`, id).Scan(&n)
	return n, err
}

func (r *repository) HasMember(ctx context.Context, id, paroissienID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM association_paroissiens WHERE association_id = $1 AND paroissien_id = $2)`, id, paroissienID).Scan(&exists)
	return exists, err
}

func (r *repository) AddMember(ctx context.Context, id int64, m MemberForm) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO association_paroissiens (association_id, paroissien_id, is_primary, statut)
VALUES ($1, $2, $3, NULLIF($4, ''))`, id, m.ParoissienID, m.IsPrimary, m.Statut)
	return shared.TranslatePgError(err)
}

func (r *repository) RemoveMember(ctx context.Context, id, paroissienID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM association_paroissiens WHERE association_id = $1 AND paroissien_id = $2`, id, paroissienID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateMemberStatus(ctx context.Context, id, paroissienID int64, statut string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE association_paroissiens SET statut = NULLIF($3, '') WHERE association_id = $1 AND paroissien_id = $2`, id, paroissienID, statut)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Options(ctx context.Context) ([]Option, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, sigle FROM associations WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Name, &o.Sigle); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE a.is_active),
    COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM association_paroissiens ap WHERE ap.association_id = a.id))
FROM associations a`).Scan(&s.Total, &s.Active, &s.WithMembers)
	if err != nil {
		return Stats{}, err
	}
	s.Inactive = s.Total - s.Active
	s.Empty = s.Total - s.WithMembers
	return s, nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "sigle":
		return "a.sigle " + dir + ", a.name ASC"
	case "created_at":
		return "a.created_at " + dir
	case "members":
		return "8 " + dir + ", a.name ASC"
	default:
		return "a.name " + dir
	}
}
