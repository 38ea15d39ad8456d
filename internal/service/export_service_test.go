package service

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/storage"
)

func sampleComparison() *dto.VersionComparison {
	left := &models.SyllabusVersion{ID: "s-1", RootID: "root-1", SubjectCode: "IF 101", SubjectName: "Algorithms", VersionNo: 1, Status: models.StatusPublished}
	right := &models.SyllabusVersion{ID: "s-2", RootID: "root-1", SubjectCode: "IF 101", SubjectName: "Algorithms", VersionNo: 2, Status: models.StatusDraft}
	return &dto.VersionComparison{
		RootID:  "root-1",
		Left:    left,
		Right:   right,
		Changes: DiffVersions(left, right),
	}
}

func fixedExporter(t *testing.T) (*ComparisonExporter, *storage.LocalStorage) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exporter := NewComparisonExporter(files, time.Hour, nil)
	exporter.now = func() time.Time { return time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC) }
	return exporter, files
}

func TestComparisonExportCSV(t *testing.T) {
	exporter, files := fixedExporter(t)
	cmp := sampleComparison()
	cmp.Right.Summary = "Graph algorithms added"
	cmp.Changes = DiffVersions(cmp.Left, cmp.Right)

	out, err := exporter.Export(cmp, "")
	require.NoError(t, err)
	assert.Equal(t, "compare_IF_101_v1_v2_20260301_083000.csv", out.Filename)
	assert.Equal(t, "text/csv", out.ContentType)
	assert.Equal(t, len(out.Data), out.Size)

	records, err := csv.NewReader(bytes.NewReader(out.Data)).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, []string{"Field", "v1", "v2"}, records[0])
	assert.Contains(t, records[1:], []string{"summary", "", "Graph algorithms added"})

	stored, err := files.Read(out.Filename)
	require.NoError(t, err)
	assert.Equal(t, out.Data, stored)
}

func TestComparisonExportPDF(t *testing.T) {
	exporter, _ := fixedExporter(t)
	out, err := exporter.Export(sampleComparison(), ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.True(t, bytes.HasPrefix(out.Data, []byte("%PDF")))
}

func TestComparisonExportRejectsUnknownFormat(t *testing.T) {
	exporter, _ := fixedExporter(t)
	_, err := exporter.Export(sampleComparison(), "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	_, err = exporter.Export(&dto.VersionComparison{RootID: "root-1"}, ExportCSV)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))
}

func TestComparisonDatasetNotesIdenticalVersions(t *testing.T) {
	cmp := sampleComparison()
	cmp.Changes = nil
	data := ComparisonDataset(cmp)
	assert.Empty(t, data.Rows)
	assert.Contains(t, data.Notes, "No differences.")
	assert.Contains(t, data.Title, "version 1 vs 2")
}
