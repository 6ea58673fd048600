package paroissiens

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroisse/paroisse/internal/shared"
)

type memoryRepo struct {
	Repository
	items      map[int64]Paroissien
	links      map[int64][]int64
	nextID     int64
	duplicates int
	categories map[string]int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Paroissien{}, links: map[int64][]int64{}}
}

func (m *memoryRepo) Create(ctx context.Context, p Paroissien, associationIDs []int64) (Paroissien, error) {
	if m.duplicates > 0 {
		m.duplicates--
		return Paroissien{}, shared.ErrDuplicate
	}
	m.nextID++
	p.ID = m.nextID
	m.items[p.ID] = p
	m.links[p.ID] = associationIDs
	return p, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, p Paroissien, associationIDs []int64) error {
	existing, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.ID = id
	p.Matricule = existing.Matricule
	m.items[id] = p
	m.links[id] = associationIDs
	return nil
}

func (m *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	p, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.IsActive = active
	m.items[id] = p
	return nil
}

func (m *memoryRepo) IDByMatricule(ctx context.Context, matricule string) (int64, error) {
	for id, p := range m.items {
		if p.Matricule == matricule {
			return id, nil
		}
	}
	return 0, shared.ErrNotFound
}

func (m *memoryRepo) CountByCategorie(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	for k, v := range m.categories {
		out[k] = v
	}
	return out, nil
}

type auditSpy struct {
	logs []shared.AuditLog
}

func (a *auditSpy) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService(repo Repository) (*Service, *auditSpy) {
	audit := &auditSpy{}
	svc := NewService(repo, audit, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return svc, audit
}

func validForm() Form {
	f := DefaultForm()
	f.Name = "  Jean Mba "
	f.Email = " Jean.Mba@Example.com "
	f.Genre = "homme"
	f.AssociationIDs = []int64{3, 1}
	return f
}

func TestCreateNormalisesAndAssignsMatricule(t *testing.T) {
	repo := newMemoryRepo()
	svc, audit := newTestService(repo)

	created, err := svc.Create(context.Background(), 9, validForm())
	require.NoError(t, err)
	assert.Equal(t, "Jean Mba", created.Name)
	assert.Equal(t, "jean.mba@example.com", created.Email)
	assert.Equal(t, GenreHomme, created.Genre)
	assert.Regexp(t, matriculePattern, created.Matricule)
	assert.Nil(t, created.Birthdate)
	assert.Equal(t, []int64{3, 1}, repo.links[created.ID])

	require.Len(t, audit.logs, 1)
	assert.Equal(t, shared.AuditCreate, audit.logs[0].Action)
	assert.Equal(t, int64(9), audit.logs[0].ActorID)
}

func TestCreateRetriesMatriculeCollisions(t *testing.T) {
	repo := newMemoryRepo()
	repo.duplicates = 2
	svc, _ := newTestService(repo)

	created, err := svc.Create(context.Background(), 1, validForm())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newMemoryRepo()
	repo.duplicates = matriculeAttempts
	svc, audit := newTestService(repo)

	_, err := svc.Create(context.Background(), 1, validForm())
	assert.ErrorIs(t, err, shared.ErrDuplicate)
	assert.Empty(t, audit.logs)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(newMemoryRepo())

	f := validForm()
	f.Categorie = "EVEQUE"
	f.Email = "pas-un-email"
	f.Name = ""
	_, err := svc.Create(context.Background(), 1, f)
	require.ErrorIs(t, err, shared.ErrValidation)
	fields := shared.FieldErrors(err)
	assert.Contains(t, fields, "categorie")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "name")
}

func TestUpdateKeepsMatricule(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	created, err := svc.Create(context.Background(), 1, validForm())
	require.NoError(t, err)

	f := FormFrom(repo.items[created.ID])
	f.Situation = SituationMarie
	f.AssociationIDs = nil
	require.NoError(t, svc.Update(context.Background(), 1, created.ID, f))
	assert.Equal(t, created.Matricule, repo.items[created.ID].Matricule)
	assert.Equal(t, SituationMarie, repo.items[created.ID].Situation)
	assert.Empty(t, repo.links[created.ID])
}

func TestDeactivateAndRestore(t *testing.T) {
	repo := newMemoryRepo()
	svc, audit := newTestService(repo)
	created, err := svc.Create(context.Background(), 1, validForm())
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), 1, created.ID))
	assert.False(t, repo.items[created.ID].IsActive)
	require.NoError(t, svc.Restore(context.Background(), 1, created.ID))
	assert.True(t, repo.items[created.ID].IsActive)
	assert.Len(t, audit.logs, 3)

	assert.ErrorIs(t, svc.Deactivate(context.Background(), 1, 404), shared.ErrNotFound)
}

func TestFindByMatricule(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	created, err := svc.Create(context.Background(), 1, validForm())
	require.NoError(t, err)

	id, err := svc.FindByMatricule(context.Background(), " "+created.Matricule+" ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, id)

	_, err = svc.FindByMatricule(context.Background(), "   ")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCountByCategorieFillsMissing(t *testing.T) {
	repo := newMemoryRepo()
	repo.categories = map[string]int{CategorieFidele: 12}
	svc, _ := newTestService(repo)

	counts, err := svc.CountByCategorie(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{CategorieAncien: 0, CategorieDiacre: 0, CategorieFidele: 12}, counts)
}

func TestParseListFiltersDropsUnknownValues(t *testing.T) {
	req := httptest.NewRequest("GET", "/paroissiens?categorie=DIACRE&genre=AUTRE&association=4&active=false&q=mba", nil)
	f := ParseListFilters(req)
	assert.Equal(t, CategorieDiacre, f.Categorie)
	assert.Empty(t, f.Genre)
	assert.Equal(t, int64(4), f.AssociationID)
	require.NotNil(t, f.IsActive)
	assert.False(t, *f.IsActive)
}
