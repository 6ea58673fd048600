package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroisse/paroisse/internal/shared"
)

type stubRepo struct {
	rows       []TimelineRow
	lastOffset int
	lastLimit  int
	lastFilter TimelineFilters
}

func (s *stubRepo) Window(_ context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = f, offset, limit
	if len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func (s *stubRepo) All(_ context.Context, f TimelineFilters, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastLimit = f, limit
	return s.rows, nil
}

func rowsAt(n int) []TimelineRow {
	out := make([]TimelineRow, n)
	for i := range out {
		out[i] = TimelineRow{At: time.Date(2024, 3, 10-i, 10, 0, 0, 0, time.UTC), Action: shared.AuditUpdate, Entity: "paroissien"}
	}
	return out
}

func TestTimelinePeeksOneRowAhead(t *testing.T) {
	repo := &stubRepo{rows: rowsAt(3)}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)

	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Zero(t, result.Paging.PrevPage)
	assert.Equal(t, 3, repo.lastLimit)
	assert.Zero(t, repo.lastOffset)
}

func TestTimelineLastPage(t *testing.T) {
	repo := &stubRepo{rows: rowsAt(1)}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)

	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.PrevPage)
	assert.Equal(t, 20, repo.lastOffset)
}

func TestTimelineClampsPaging(t *testing.T) {
	repo := &stubRepo{}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{Page: -1, PageSize: 500, Actor: "  marie "})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Paging.Page)
	assert.Equal(t, maxPageSize, result.Paging.PageSize)
	assert.Equal(t, maxPageSize+1, repo.lastLimit)
	assert.Equal(t, "marie", repo.lastFilter.Actor)
}

func TestExportIsCapped(t *testing.T) {
	repo := &stubRepo{rows: rowsAt(2)}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{Entity: " versement"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, MaxExportRows, repo.lastLimit)
	assert.Equal(t, "versement", repo.lastFilter.Entity)
}

func TestServiceWithoutRepository(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	assert.Error(t, err)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Création", ActionLabel(shared.AuditCreate))
	assert.Equal(t, "Versement", EntityLabel("versement"))
	assert.Equal(t, "other", EntityLabel("other"))
}

func TestLines(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	lines := Lines([]shared.AuditLog{
		{ActorName: "Marie", Action: shared.AuditUpdate, Entity: "paroissien", EntityID: "12", At: at},
		{Action: shared.AuditDelete, Entity: "versement", EntityID: "4", At: at},
		{ActorName: "Paul", Action: shared.AuditCreate, Entity: "user", EntityID: "9", At: at},
	})
	require.Len(t, lines, 3)
	assert.Equal(t, Line{At: at, Actor: "Marie", Action: "Modification", Entity: "Paroissien", EntityID: "12", Href: "/paroissiens/12"}, lines[0])
	assert.Equal(t, "Système", lines[1].Actor)
	assert.Empty(t, lines[1].Href)
	assert.Empty(t, lines[2].Href)
}
