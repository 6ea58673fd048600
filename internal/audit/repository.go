package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	All(ctx context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	return r.query(ctx, filters, offset, limit)
}

func (r *repository) All(ctx context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error) {
	return r.query(ctx, filters, 0, limit)
}

func (r *repository) query(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	var (
		where []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if !filters.From.IsZero() {
		where = append(where, "a.occurred_at >= "+next(filters.From))
	}
	if !filters.To.IsZero() {
		where = append(where, "a.occurred_at < "+next(filters.To.AddDate(0, 0, 1)))
	}
	if actor := strings.TrimSpace(filters.Actor); actor != "" {
		p := next("%" + actor + "%")
		where = append(where, "(u.name ILIKE "+p+" OR u.email ILIKE "+p+")")
	}
	if filters.Entity != "" {
		where = append(where, "a.entity = "+next(filters.Entity))
	}
	if filters.Action != "" {
		where = append(where, "a.action = "+next(filters.Action))
	}

	sql := `SELECT a.occurred_at, COALESCE(u.name, ''), COALESCE(u.email, ''), a.action, a.entity, a.entity_id, a.meta
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id`
	if len(where) > 0 {
		sql += "\nWHERE " + strings.Join(where, " AND ")
	}
	sql += "\nORDER BY a.occurred_at DESC, a.id DESC LIMIT " + next(limit) + " OFFSET " + next(offset)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var (
			row  TimelineRow
			meta []byte
		)
		if err := rows.Scan(&row.At, &row.ActorName, &row.Email, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &row.Meta)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
