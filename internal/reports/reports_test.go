package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/finances/offrandes"
	"github.com/paroisse/paroisse/internal/finances/versements"
	"github.com/paroisse/paroisse/internal/shared"
)

type fakeStats struct {
	mu     sync.Mutex
	ranges [][2]time.Time
	err    error
}

func (f *fakeStats) Totals(_ context.Context, start, end time.Time) (finances.Totals, error) {
	f.mu.Lock()
	f.ranges = append(f.ranges, [2]time.Time{start, end})
	f.mu.Unlock()
	return finances.Totals{Versements: int64(start.Month()) * 1000}, f.err
}

func (f *fakeStats) ByType(_ context.Context, start, _ time.Time) ([]finances.TypeTotal, error) {
	return finances.FillTypes(map[finances.VersementType]finances.TypeTotal{
		finances.TypeDime: {Total: int64(start.Month()) * 100, Count: 1},
	}), nil
}

func (f *fakeStats) ByAssociation(context.Context, time.Time, time.Time) ([]finances.AssociationTotal, error) {
	return []finances.AssociationTotal{{AssociationID: 1, Name: "Chorale", Total: 3000, Count: 2}, {AssociationID: 2, Name: "Jeunesse", Total: 500, Count: 1}}, nil
}

func (f *fakeStats) Monthly(context.Context, int) ([]finances.MonthTotal, error) {
	return finances.EmptyMonths(), nil
}

func (f *fakeStats) RecentVersements(context.Context, int) ([]finances.RecentVersement, error) {
	return nil, nil
}

func (f *fakeStats) RecentEngagements(context.Context, int) ([]finances.RecentEngagement, error) {
	return nil, nil
}

type fakeVersements struct{ period shared.FiscalPeriod }

func (f *fakeVersements) Export(_ context.Context, p shared.FiscalPeriod) ([]versements.Versement, error) {
	f.period = p
	return nil, nil
}

type fakeOffrandes struct{}

func (fakeOffrandes) Export(context.Context, shared.FiscalPeriod) ([]offrandes.Offrande, error) {
	return nil, nil
}

func TestBuildYearAndQuarters(t *testing.T) {
	stats := &fakeStats{}
	svc := NewService(stats, &fakeVersements{}, fakeOffrandes{}, nil)

	report, err := svc.Build(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, 2024, report.Year)
	require.Len(t, report.Quarters, 4)
	for i, q := range report.Quarters {
		assert.Equal(t, i+1, q.Quarter)
		assert.Equal(t, shared.QuarterLabel(i+1), q.Label)
		assert.Len(t, q.ByType, len(finances.VersementTypes))
	}
	// April starts the second quarter.
	assert.Equal(t, int64(4000), report.Quarters[1].Totals.Versements)
	assert.Equal(t, int64(1000), report.Totals.Versements)
	assert.Equal(t, int64(100), report.TypeSum())
	assert.Equal(t, int64(3500), report.AssociationSum())
	assert.Len(t, stats.ranges, 5)
}

func TestBuildPropagatesErrors(t *testing.T) {
	svc := NewService(&fakeStats{err: errors.New("db down")}, &fakeVersements{}, fakeOffrandes{}, nil)
	_, err := svc.Build(context.Background(), 2024)
	assert.EqualError(t, err, "db down")
}

func TestExportPassesPeriod(t *testing.T) {
	src := &fakeVersements{}
	svc := NewService(&fakeStats{}, src, fakeOffrandes{}, nil)
	_, err := svc.Versements(context.Background(), shared.FiscalPeriod{Year: 2023, Quarter: 2})
	require.NoError(t, err)
	assert.Equal(t, shared.FiscalPeriod{Year: 2023, Quarter: 2}, src.period)
}

func TestWriteVersementsCSV(t *testing.T) {
	engagement := int64(9)
	rows := []versements.Versement{
		{ParoissienMatricule: "PAR-X-0001", ParoissienName: "Jean, fils", Type: finances.TypeDime, Somme: 15000,
			DateVersement: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), EngagementID: &engagement},
		{ParoissienName: "Marie", Type: finances.TypeOffrandeConstruction, Somme: 500,
			DateVersement: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteVersementsCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Date", records[0][0])
	assert.Equal(t, []string{"2024-03-05", "PAR-X-0001", "Jean, fils", "Dîme", "15000", "9", "", "", ""}, records[1])
	assert.Equal(t, "", records[2][5])
	assert.Equal(t, "Offrande Construction", records[2][3])
}

func TestWriteOffrandesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOffrandesCSV(&buf, []offrandes.Offrande{{
		AssociationName: "Chorale", Somme: 2500, OffrandeDay: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), Description: "Culte",
	}}))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"2024-01-07", "Chorale", "2500", "Culte", ""}, records[1])
}

func TestPrintableHTML(t *testing.T) {
	svc := NewService(&fakeStats{}, &fakeVersements{}, fakeOffrandes{}, nil)
	report, err := svc.Build(context.Background(), 2024)
	require.NoError(t, err)

	html, err := PrintableHTML(report)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Rapport financier 2024")
	assert.Contains(t, string(html), "Chorale")
	assert.Contains(t, string(html), "Dîme")
}

func TestPDFClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/forms/chromium/convert/html":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, _, err := r.FormFile("files")
			require.NoError(t, err)
			_, _ = w.Write([]byte("%PDF"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewPDFClient(srv.URL + "/")
	require.True(t, client.Enabled())
	require.NoError(t, client.Ping(context.Background()))
	pdf, err := client.RenderHTML(context.Background(), []byte("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf))
}

func TestPDFClientDisabled(t *testing.T) {
	client := NewPDFClient("")
	assert.False(t, client.Enabled())
	_, err := client.RenderHTML(context.Background(), nil)
	assert.ErrorIs(t, err, ErrPDFDisabled)
}

func TestCumulativeChart(t *testing.T) {
	months := finances.EmptyMonths()
	months[0].Versements = 1000
	months[1].Versements = 2000
	svg, err := CumulativeChart(months)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "Versements cumulés")
}
