package repository

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// vendorKey folds a vendor name for case-insensitive matching. Folding happens
// here rather than in SQL because SQLite's LOWER only handles ASCII.
func vendorKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func listConditions(f entity.ListFilter) sq.And {
	conds := sq.And{}
	if f.DateFrom != nil {
		conds = append(conds, sq.GtOrEq{`"date"`: dateArg(f.DateFrom)})
	}
	if f.DateTo != nil {
		conds = append(conds, sq.LtOrEq{`"date"`: dateArg(f.DateTo)})
	}
	if v := strings.TrimSpace(f.Vendor); v != "" {
		pattern := "%" + likeEscaper.Replace(vendorKey(v)) + "%"
		conds = append(conds, sq.Expr(`vendor_key LIKE ? ESCAPE '\'`, pattern))
	}
	if f.DocumentType != "" {
		conds = append(conds, sq.Eq{"document_type": f.DocumentType})
	}
	return conds
}

// List returns one page of extractions, newest first, with Total counted over
// the whole filtered set.
func (r *extractionRepository) List(ctx context.Context, f entity.ListFilter) (*entity.Page, error) {
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	v := common.NewValidator().
		Field("limit", f.Limit, common.IntRange(1, MaxListLimit)).
		Field("offset", f.Offset, common.Min(0))
	if err := v.Err(); err != nil {
		return nil, err
	}

	conds := listConditions(f)
	countQuery, countArgs, err := r.builder().Select("COUNT(*)").From(tableExtractions).Where(conds).ToSql()
	if err != nil {
		return nil, err
	}
	var total int
	if err := r.db.SQL.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		r.logger.Error("failed to count extractions", "error", err)
		return nil, common.PersistenceError("count extractions", err)
	}

	query, args, err := r.builder().Select(extractionColumns...).From(tableExtractions).
		Where(conds).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list extractions", "error", err)
		return nil, common.PersistenceError("list extractions", err)
	}
	defer rows.Close()

	page := &entity.Page{Extractions: []entity.Extraction{}, Total: total, Offset: f.Offset, Limit: f.Limit}
	var ids []string
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, common.PersistenceError("scan extraction", err)
		}
		page.Extractions = append(page.Extractions, *e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, common.PersistenceError("iterate extractions", err)
	}
	rows.Close()

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range page.Extractions {
		if li, ok := items[page.Extractions[i].ID]; ok {
			page.Extractions[i].LineItems = li
		}
	}
	r.logger.Debug("repo.extraction.listed", "total", total, "returned", len(page.Extractions), "offset", f.Offset, "limit", f.Limit)
	return page, nil
}

// ExportRows flattens extractions and their line items with a left join.
// A nil ids slice selects every extraction.
func (r *extractionRepository) ExportRows(ctx context.Context, ids []string) ([]entity.ExportRow, error) {
	q := r.builder().Select(
		"e.id", "e.filename", "e.document_type", "e.vendor_name", "e.total_amount", "e.currency",
		`e."date"`, "e.invoice_number", "e.tax_amount", "e.summary",
		"l.id", "l.description", "l.quantity", "l.unit_price", "l.total", "l.sku",
	).
		From(tableExtractions + " e").
		LeftJoin(tableLineItems + " l ON l.extraction_id = e.id").
		OrderBy("e.id", `l."position"`)
	if ids != nil {
		q = q.Where(sq.Eq{"e.id": ids})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query export rows", "error", err)
		return nil, common.PersistenceError("export rows", err)
	}
	defer rows.Close()

	out := []entity.ExportRow{}
	for rows.Next() {
		var (
			row                  entity.ExportRow
			vendor, invoice      sql.NullString
			summary              sql.NullString
			date                 nullDate
			total, tax           decimal.NullDecimal
			lineID, desc, sku    sql.NullString
			qty, unit, lineTotal decimal.NullDecimal
		)
		if err := rows.Scan(
			&row.ID, &row.Filename, &row.DocumentType, &vendor, &total, &row.Currency,
			&date, &invoice, &tax, &summary,
			&lineID, &desc, &qty, &unit, &lineTotal, &sku,
		); err != nil {
			return nil, common.PersistenceError("scan export row", err)
		}
		row.VendorName = vendor.String
		row.TotalAmount = floatOf(total)
		row.Date = date.Time
		row.InvoiceNumber = invoice.String
		row.TaxAmount = floatOf(tax)
		row.Summary = summary.String
		if lineID.Valid {
			d := desc.String
			row.LineDescription = &d
			row.LineQuantity = floatPtr(qty)
			row.LineUnitPrice = floatPtr(unit)
			row.LineTotal = floatPtr(lineTotal)
			row.LineSKU = stringPtr(sku)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, common.PersistenceError("iterate export rows", err)
	}
	return out, nil
}
