package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/paroisse/paroisse/internal/view"
)

// ErrPDFDisabled is returned when no Gotenberg endpoint is configured.
var ErrPDFDisabled = errors.New("reports: pdf rendering disabled")

// PDFClient converts HTML documents through the Gotenberg API.
type PDFClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPDFClient returns nil when baseURL is empty.
func NewPDFClient(baseURL string) *PDFClient {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil
	}
	return &PDFClient{baseURL: baseURL, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// Enabled reports whether documents can be rendered.
func (c *PDFClient) Enabled() bool { return c != nil }

// Ping checks that Gotenberg answers.
func (c *PDFClient) Ping(ctx context.Context) error {
	if c == nil {
		return ErrPDFDisabled
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

// RenderHTML converts html into a PDF document.
func (c *PDFClient) RenderHTML(ctx context.Context, html []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrPDFDisabled
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(html); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("gotenberg response %d: %s", resp.StatusCode, string(msg))
	}
	return io.ReadAll(resp.Body)
}

var printable = template.Must(template.New("report").Funcs(template.FuncMap{
	"money": view.FormatMoney,
	"date":  view.FormatDate,
}).Parse(`<!DOCTYPE html>
<html lang="fr"><head><meta charset="utf-8"><title>Rapport financier {{.Year}}</title>
<style>
body{font-family:sans-serif;font-size:12px;color:#0f172a}
table{border-collapse:collapse;width:100%;margin-bottom:18px}
th,td{border:1px solid #cbd5e1;padding:4px 6px;text-align:left}
td.num,th.num{text-align:right}
</style></head><body>
<h1>Rapport financier {{.Year}}</h1>
<p>Généré le {{date .GeneratedAt}}</p>
<h2>Synthèse</h2>
<table>
<tr><th>Engagements</th><td class="num">{{money .Totals.Pledged}}</td></tr>
<tr><th>Reçu sur engagements</th><td class="num">{{money .Totals.Received}}</td></tr>
<tr><th>Versements ({{.Totals.VersementCount}})</th><td class="num">{{money .Totals.Versements}}</td></tr>
<tr><th>Offrandes ({{.Totals.OffrandeCount}})</th><td class="num">{{money .Totals.Offrandes}}</td></tr>
</table>
<h2>Versements par type</h2>
<table><tr><th>Type</th>{{range .Quarters}}<th class="num">T{{.Quarter}}</th>{{end}}<th class="num">Année</th></tr>
{{$q := .Quarters}}{{range $i, $t := .ByType}}<tr><td>{{$t.Type.Label}}</td>{{range $q}}<td class="num">{{money (index .ByType $i).Total}}</td>{{end}}<td class="num">{{money $t.Total}}</td></tr>
{{end}}</table>
<h2>Offrandes par association</h2>
<table><tr><th>Association</th><th class="num">Nombre</th><th class="num">Total</th></tr>
{{range .ByAssociation}}<tr><td>{{.Name}}</td><td class="num">{{.Count}}</td><td class="num">{{money .Total}}</td></tr>
{{end}}</table>
</body></html>`))

// PrintableHTML renders the standalone document sent to Gotenberg.
func PrintableHTML(r Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := printable.Execute(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
