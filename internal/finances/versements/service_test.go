package versements

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/shared"
)

// memoryRepo mirrors the PostgreSQL contract: every write moves the linked
// engagement counters by the planned adjustments.
type memoryRepo struct {
	Repository
	items    map[int64]Versement
	counters map[int64]map[finances.Counter]int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Versement{}, counters: map[int64]map[finances.Counter]int64{}}
}

func (m *memoryRepo) apply(adjs []finances.Adjustment) {
	for _, a := range adjs {
		if m.counters[a.EngagementID] == nil {
			m.counters[a.EngagementID] = map[finances.Counter]int64{}
		}
		m.counters[a.EngagementID][a.Counter] += a.Delta
	}
}

func (m *memoryRepo) Create(ctx context.Context, v Versement) (Versement, error) {
	m.nextID++
	v.ID = m.nextID
	m.items[v.ID] = v
	m.apply(finances.PlanAdjustments(nil, v.Effect()))
	return v, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, v Versement) error {
	old, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	v.ID = id
	m.items[id] = v
	m.apply(finances.PlanAdjustments(old.Effect(), v.Effect()))
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	old, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	delete(m.items, id)
	m.apply(finances.PlanAdjustments(old.Effect(), nil))
	return nil
}

type bumpCounter struct{ n int }

func (b *bumpCounter) Bump(context.Context) error {
	b.n++
	return nil
}

func form(engagementID int64, typ finances.VersementType, somme int64) Form {
	return Form{
		ParoissienID:  1,
		EngagementID:  engagementID,
		Type:          string(typ),
		Somme:         somme,
		DateVersement: time.Date(2024, 3, 10, 15, 4, 0, 0, time.Local),
	}
}

func TestCreateCreditsMatchingCounter(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	v, err := svc.Create(ctx, 7, form(10, finances.TypeDime, 5000))
	require.NoError(t, err)
	require.NotNil(t, v.CreatedBy)
	assert.Equal(t, int64(7), *v.CreatedBy)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), v.DateVersement)

	_, err = svc.Create(ctx, 7, form(10, finances.TypeDetteCotisation, 2000))
	require.NoError(t, err)
	_, err = svc.Create(ctx, 7, form(10, finances.TypeOffrandeConstruction, 9000))
	require.NoError(t, err)
	_, err = svc.Create(ctx, 7, form(0, finances.TypeDime, 100))
	require.NoError(t, err)

	assert.Equal(t, map[finances.Counter]int64{
		finances.CounterDime:            5000,
		finances.CounterDetteCotisation: 2000,
	}, repo.counters[10])
	assert.Len(t, repo.counters, 1)
}

func TestUpdateReversesPreviousEffect(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	v, err := svc.Create(ctx, 1, form(10, finances.TypeDime, 5000))
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, 1, v.ID, form(10, finances.TypeDime, 3000)))
	assert.Equal(t, int64(3000), repo.counters[10][finances.CounterDime])

	require.NoError(t, svc.Update(ctx, 1, v.ID, form(11, finances.TypeDetteDime, 3000)))
	assert.Zero(t, repo.counters[10][finances.CounterDime])
	assert.Equal(t, int64(3000), repo.counters[11][finances.CounterDetteDime])

	require.NoError(t, svc.Update(ctx, 1, v.ID, form(0, finances.TypeDetteDime, 3000)))
	assert.Zero(t, repo.counters[11][finances.CounterDetteDime])
}

func TestDeleteReversesEffect(t *testing.T) {
	repo := newMemoryRepo()
	bumps := &bumpCounter{}
	svc := NewService(repo, nil, bumps, nil)
	ctx := context.Background()

	v, err := svc.Create(ctx, 1, form(10, finances.TypeDetteDime, 4500))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, 1, v.ID))
	assert.Zero(t, repo.counters[10][finances.CounterDetteDime])
	assert.Equal(t, 2, bumps.n)

	assert.ErrorIs(t, svc.Delete(ctx, 1, v.ID), shared.ErrNotFound)
	assert.Equal(t, 2, bumps.n)
}

func TestValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	ctx := context.Background()

	cases := map[string]Form{
		"somme":          form(0, finances.TypeDime, 0),
		"type":           form(0, "CAFE", 100),
		"paroissien_id":  func() Form { f := form(0, finances.TypeDime, 100); f.ParoissienID = 0; return f }(),
		"date_versement": func() Form { f := form(0, finances.TypeDime, 100); f.DateVersement = time.Time{}; return f }(),
	}
	for field, f := range cases {
		_, err := svc.Create(ctx, 1, f)
		require.ErrorIs(t, err, shared.ErrValidation, field)
		assert.Contains(t, shared.FieldErrors(err), field)
	}
}

func TestTypeIsNormalised(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	v, err := svc.Create(context.Background(), 1, form(0, " dette_dime ", 100))
	require.NoError(t, err)
	assert.Equal(t, finances.TypeDetteDime, v.Type)
	assert.Equal(t, "Dette Dîme", v.TypeLabel())
}
