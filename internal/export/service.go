package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/repository"
)

// Header is the fixed column order of every export.
var Header = []string{
	"id", "filename", "document_type", "vendor_name", "total_amount", "currency", "date",
	"invoice_number", "tax_amount", "summary",
	"line_description", "line_quantity", "line_unit_price", "line_total", "line_sku",
}

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// File is a rendered export ready to hand to a caller.
type File struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Service renders stored extractions as flat tabular files.
type Service struct {
	repo   repository.ExtractionRepository
	logger *slog.Logger
}

func NewService(repo repository.ExtractionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Export renders the selected extractions, or all of them when ids is nil.
func (s *Service) Export(ctx context.Context, format string, ids []string) (*File, error) {
	start := time.Now()
	format = strings.ToLower(strings.TrimSpace(format))
	if format != constants.FormatCSV && format != constants.FormatXLSX {
		return nil, common.UnsupportedFormatError(format)
	}

	rows, err := s.repo.ExportRows(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("query export rows: %w", err)
	}

	var out *File
	switch format {
	case constants.FormatCSV:
		data, err := WriteCSV(rows)
		if err != nil {
			return nil, err
		}
		out = &File{Data: data, ContentType: ContentTypeCSV, Filename: "extractions.csv"}
	case constants.FormatXLSX:
		data, err := WriteXLSX(rows)
		if err != nil {
			return nil, err
		}
		out = &File{Data: data, ContentType: ContentTypeXLSX, Filename: "extractions.xlsx"}
	}

	s.logger.Info("export."+format+".ok",
		"rows", len(rows),
		"bytes", len(out.Data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Record flattens one row into Header order.
func Record(r entity.ExportRow) []string {
	date := ""
	if r.Date != nil {
		date = r.Date.Format("2006-01-02")
	}
	return []string{
		r.ID,
		r.Filename,
		r.DocumentType,
		r.VendorName,
		money(r.TotalAmount),
		r.Currency,
		date,
		r.InvoiceNumber,
		money(r.TaxAmount),
		r.Summary,
		deref(r.LineDescription),
		number(r.LineQuantity),
		moneyPtr(r.LineUnitPrice),
		moneyPtr(r.LineTotal),
		deref(r.LineSKU),
	}
}

// WriteCSV writes Header plus one record per row, LF-terminated.
func WriteCSV(rows []entity.ExportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(Record(r)); err != nil {
			return nil, fmt.Errorf("csv write: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteXLSX renders the same grid as WriteCSV into a single-sheet workbook.
func WriteXLSX(rows []entity.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Extractions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, r := range rows {
		for col, v := range Record(r) {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // id
	_ = f.SetColWidth(sheet, "B", "B", 28) // filename
	_ = f.SetColWidth(sheet, "D", "D", 28) // vendor
	_ = f.SetColWidth(sheet, "J", "K", 48) // summary, line description

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func moneyPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return money(*v)
}

func number(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
