package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

var extractionColumns = []string{
	"id", "doc_hash", "filename", "document_type", "vendor_name", "vendor_address",
	"invoice_number", `"date"`, "due_date", "total_amount", "tax_amount", "currency",
	"summary", "raw_json", "confidence", "created_at",
}

// extractionInsertColumns are quoted by the ent builder itself. vendor_key is
// written but never read back.
var extractionInsertColumns = []string{
	"id", "doc_hash", "filename", "document_type", "vendor_name", "vendor_address",
	"invoice_number", "date", "due_date", "total_amount", "tax_amount", "currency",
	"summary", "raw_json", "confidence", "created_at", "vendor_key",
}

var lineItemColumns = []string{
	"id", "extraction_id", "description", "quantity", "unit_price", "total", "sku",
}

type ExtractionRepository interface {
	FindByHash(ctx context.Context, hash string) (*entity.Extraction, error)
	Get(ctx context.Context, id string) (*entity.Extraction, error)
	CreateOrGet(ctx context.Context, header *entity.Extraction, items []entity.LineItem) (*entity.Extraction, bool, error)
	List(ctx context.Context, filter entity.ListFilter) (*entity.Page, error)
	ExportRows(ctx context.Context, ids []string) ([]entity.ExportRow, error)
}

type extractionRepository struct {
	db     *DB
	logger *slog.Logger
	clock  *clock
}

func NewExtractionRepository(db *DB, logger *slog.Logger) ExtractionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractionRepository{
		db:     db,
		logger: logger,
		clock:  &clock{},
	}
}

// clock hands out strictly increasing UTC timestamps at microsecond precision
// so created_at ordering is total within a process.
type clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

func (r *extractionRepository) builder() sq.StatementBuilderType {
	if r.db.Dialect == dialect.Postgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func (r *extractionRepository) FindByHash(ctx context.Context, hash string) (*entity.Extraction, error) {
	return r.getOne(ctx, sq.Eq{"doc_hash": hash}, "hash", hash)
}

func (r *extractionRepository) Get(ctx context.Context, id string) (*entity.Extraction, error) {
	return r.getOne(ctx, sq.Eq{"id": id}, "id", id)
}

func (r *extractionRepository) getOne(ctx context.Context, where sq.Eq, key, value string) (*entity.Extraction, error) {
	query, args, err := r.builder().Select(extractionColumns...).From(tableExtractions).Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	row := r.db.SQL.QueryRowContext(ctx, query, args...)
	e, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("extraction with %s %s not found", key, value)
	}
	if err != nil {
		r.logger.Error("failed to load extraction", key, value, "error", err)
		return nil, common.PersistenceError("load extraction", err)
	}
	items, err := r.loadItems(ctx, []string{e.ID})
	if err != nil {
		return nil, err
	}
	e.LineItems = items[e.ID]
	return e, nil
}

// CreateOrGet inserts header and items atomically. When a record with the same
// doc_hash already exists it is returned instead and created is false.
func (r *extractionRepository) CreateOrGet(ctx context.Context, header *entity.Extraction, items []entity.LineItem) (*entity.Extraction, bool, error) {
	if header == nil || header.DocHash == "" {
		return nil, false, common.InvalidInputf("extraction header with doc_hash is required")
	}
	id := header.ID
	if id == "" {
		id = uuid.NewString()
	}
	currency := header.Currency
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	docType := header.DocumentType
	if docType == "" {
		docType = string(constants.UnknownDocType)
	}
	raw := string(header.RawJSON)
	if raw == "" {
		raw = "{}"
	}
	createdAt := r.clock.now()

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, common.PersistenceError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := entsql.Dialect(r.db.Dialect).
		Insert(tableExtractions).
		Columns(extractionInsertColumns...).
		Values(
			id, header.DocHash, header.Filename, docType,
			nullString(header.VendorName), header.VendorAddress, nullString(header.InvoiceNumber),
			dateArg(header.Date), dateArg(header.DueDate),
			moneyArg(header.TotalAmount), moneyArg(header.TaxAmount), currency,
			nullString(header.Summary), raw, decimal.NewFromFloat(header.Confidence).Round(2), createdAt,
			nullString(vendorKey(header.VendorName)),
		).
		OnConflict(entsql.ConflictColumns("doc_hash"), entsql.DoNothing())
	query, args := insert.Query()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to insert extraction", "doc_hash", header.DocHash, "error", err)
		return nil, false, common.PersistenceError("insert extraction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, common.PersistenceError("insert extraction", err)
	}
	if n == 0 {
		// lost the race: release the connection before looking the winner up
		_ = tx.Rollback()
		existing, err := r.FindByHash(ctx, header.DocHash)
		if err != nil {
			return nil, false, err
		}
		r.logger.Info("repo.extraction.duplicate", "doc_hash", header.DocHash, "id", existing.ID)
		return existing, false, nil
	}

	if len(items) > 0 {
		ib := entsql.Dialect(r.db.Dialect).Insert(tableLineItems).
			Columns("id", "extraction_id", "position", "description", "quantity", "unit_price", "total", "sku")
		for i, it := range items {
			ib = ib.Values(
				id+"_line_"+strconv.Itoa(i), id, i,
				nullString(it.Description), moneyArg(it.Quantity), moneyArg(it.UnitPrice), moneyArg(it.Total), it.SKU,
			)
		}
		query, args := ib.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.Error("failed to insert line items", "extraction_id", id, "error", err)
			return nil, false, common.PersistenceError("insert line items", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, common.PersistenceError("commit extraction", err)
	}
	r.logger.Info("repo.extraction.created", "id", id, "doc_hash", header.DocHash, "line_items", len(items))

	created, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("reload extraction: %w", err)
	}
	return created, true, nil
}

func (r *extractionRepository) loadItems(ctx context.Context, ids []string) (map[string][]entity.LineItem, error) {
	out := make(map[string][]entity.LineItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := r.builder().Select(lineItemColumns...).From(tableLineItems).
		Where(sq.Eq{"extraction_id": ids}).
		OrderBy("extraction_id", `"position"`).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to load line items", "error", err)
		return nil, common.PersistenceError("load line items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it        entity.LineItem
			desc, sku sql.NullString
			qty, unit decimal.NullDecimal
			total     decimal.NullDecimal
		)
		if err := rows.Scan(&it.ID, &it.ExtractionID, &desc, &qty, &unit, &total, &sku); err != nil {
			return nil, common.PersistenceError("scan line item", err)
		}
		it.Description = desc.String
		it.Quantity = floatOf(qty)
		it.UnitPrice = floatOf(unit)
		it.Total = floatOf(total)
		it.SKU = stringPtr(sku)
		out[it.ExtractionID] = append(out[it.ExtractionID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, common.PersistenceError("iterate line items", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (*entity.Extraction, error) {
	var (
		e                        entity.Extraction
		vendor, address, invoice sql.NullString
		summary                  sql.NullString
		date, due                nullDate
		total, tax, confidence   decimal.NullDecimal
		raw                      string
		createdAt                timestamp
	)
	err := row.Scan(
		&e.ID, &e.DocHash, &e.Filename, &e.DocumentType, &vendor, &address,
		&invoice, &date, &due, &total, &tax, &e.Currency,
		&summary, &raw, &confidence, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	e.VendorName = vendor.String
	e.VendorAddress = stringPtr(address)
	e.InvoiceNumber = invoice.String
	e.Summary = summary.String
	e.Date = date.Time
	e.DueDate = due.Time
	e.TotalAmount = floatOf(total)
	e.TaxAmount = floatOf(tax)
	e.Confidence = floatOf(confidence)
	e.RawJSON = []byte(raw)
	e.CreatedAt = createdAt.Time
	e.LineItems = []entity.LineItem{}
	return &e, nil
}
