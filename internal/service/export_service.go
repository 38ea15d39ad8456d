package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/export"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFormat selects the comparison file type.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// RenderedExport is a comparison file ready to be served.
type RenderedExport struct {
	dto.ExportResult
	Data []byte
}

// ComparisonExporter renders version comparisons and keeps a copy on disk.
type ComparisonExporter struct {
	storage   fileStorage
	renderers map[ExportFormat]renderer
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewComparisonExporter constructs the exporter. A nil storage skips
// persistence.
func NewComparisonExporter(storage fileStorage, retention time.Duration, logger *zap.Logger) *ComparisonExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &ComparisonExporter{
		storage: storage,
		renderers: map[ExportFormat]renderer{
			ExportCSV: export.NewCSVExporter(),
			ExportPDF: export.NewPDFExporter(),
		},
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Export renders cmp in the requested format, defaulting to CSV.
func (e *ComparisonExporter) Export(cmp *dto.VersionComparison, format ExportFormat) (*RenderedExport, error) {
	if cmp == nil || cmp.Left == nil || cmp.Right == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comparison requires two versions")
	}
	if format == "" {
		format = ExportCSV
	}
	r, ok := e.renderers[ExportFormat(strings.ToLower(string(format)))]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	payload, err := r.Render(ComparisonDataset(cmp))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render comparison")
	}

	filename := e.filename(cmp, r.Extension())
	if e.storage != nil {
		if _, err := e.storage.Save(filename, payload); err != nil {
			e.logger.Warn("failed to keep comparison export", zap.String("file", filename), zap.Error(err))
		}
		if removed, err := e.storage.CleanupOlderThan(e.retention); err != nil {
			e.logger.Warn("failed to clean up old exports", zap.Error(err))
		} else if len(removed) > 0 {
			e.logger.Debug("removed old exports", zap.Int("count", len(removed)))
		}
	}

	return &RenderedExport{
		ExportResult: dto.ExportResult{
			Filename:    filename,
			ContentType: r.ContentType(),
			Size:        len(payload),
		},
		Data: payload,
	}, nil
}

// ComparisonDataset lays the comparison out as Field / vA / vB rows, one
// per changed field.
func ComparisonDataset(cmp *dto.VersionComparison) export.Dataset {
	left, right := cmp.Left, cmp.Right
	data := export.Dataset{
		Title: fmt.Sprintf("%s %s: version %d vs %d", left.SubjectCode, left.SubjectName, left.VersionNo, right.VersionNo),
		Headers: []string{
			"Field",
			fmt.Sprintf("v%d", left.VersionNo),
			fmt.Sprintf("v%d", right.VersionNo),
		},
		Notes: []string{
			fmt.Sprintf("Lineage %s", cmp.RootID),
			fmt.Sprintf("Status: %s / %s", left.Status, right.Status),
		},
	}
	if len(cmp.Changes) == 0 {
		data.Notes = append(data.Notes, "No differences.")
	}
	for _, change := range cmp.Changes {
		data.Rows = append(data.Rows, []string{change.Field, change.Left, change.Right})
	}
	return data
}

func (e *ComparisonExporter) filename(cmp *dto.VersionComparison, ext string) string {
	subject := cmp.Left.SubjectCode
	if subject == "" {
		subject = cmp.RootID
	}
	return fmt.Sprintf("compare_%s_v%d_v%d_%s.%s",
		sanitizeFilename(subject), cmp.Left.VersionNo, cmp.Right.VersionNo,
		e.now().UTC().Format("20060102_150405"), ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
