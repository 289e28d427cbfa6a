package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/pkg/lrmatrix"
)

// Content types of the rendered artifacts.
const (
	ContentTypeCSV         = "text/csv"
	ContentTypeSpreadsheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJSON        = "application/json"
	ContentTypeText        = "text/plain; charset=utf-8"
	ContentTypeZip         = "application/zip"
)

// Artifact is one rendered export file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Bundle is everything the simulator needs for one case.
type Bundle struct {
	CaseID           int64
	TierLevel        int
	Table            *lrmatrix.Table
	Priors           map[string]float64
	Details          domain.CaseDetails
	PrimaryDiagnosis string
}

// RenderArtifacts renders the CSV, spreadsheet, priors and summary concurrently. The order of
// the returned artifacts is fixed.
func RenderArtifacts(ctx context.Context, b Bundle) ([]Artifact, error) {
	artifacts := []Artifact{
		{Name: MatrixCSVName(b.CaseID), ContentType: ContentTypeCSV},
		{Name: MatrixSpreadsheetName(b.CaseID), ContentType: ContentTypeSpreadsheet},
		{Name: PriorsName(b.CaseID, b.TierLevel), ContentType: ContentTypeJSON},
		{Name: SummaryName(b.CaseID), ContentType: ContentTypeText},
	}
	renderers := []func() ([]byte, error){
		func() ([]byte, error) { return RenderCSV(b.Table) },
		func() ([]byte, error) { return RenderSpreadsheet(b.Table) },
		func() ([]byte, error) { return RenderPriors(b.Priors) },
		func() ([]byte, error) {
			id := b.CaseID
			return []byte(RenderCaseSummary(b.Details, b.PrimaryDiagnosis, &id)), nil
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range renderers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := renderers[i]()
			if err != nil {
				return fmt.Errorf("rendering %s: %w", artifacts[i].Name, err)
			}
			artifacts[i].Data = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// RenderBundle packs the rendered artifacts into a single zip archive.
func RenderBundle(ctx context.Context, b Bundle) ([]byte, error) {
	artifacts, err := RenderArtifacts(ctx, b)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, a := range artifacts {
		w, err := zw.Create(a.Name)
		if err != nil {
			return nil, fmt.Errorf("adding %s to bundle: %w", a.Name, err)
		}
		if _, err := w.Write(a.Data); err != nil {
			return nil, fmt.Errorf("writing %s to bundle: %w", a.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing bundle: %w", err)
	}
	return buf.Bytes(), nil
}
