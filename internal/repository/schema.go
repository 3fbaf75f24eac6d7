package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableExtractions = "extractions"
	tableLineItems   = "line_items"

	textSize = 2147483647
)

var (
	money2   = map[string]string{dialect.Postgres: "numeric(15,2)"}
	qty2     = map[string]string{dialect.Postgres: "numeric(10,2)"}
	conf2    = map[string]string{dialect.Postgres: "numeric(3,2)"}
	dateType = map[string]string{dialect.Postgres: "date"}

	// ExtractionsColumns holds the columns for the "extractions" table.
	ExtractionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "doc_hash", Type: field.TypeString, Unique: true, Size: 64},
		{Name: "filename", Type: field.TypeString, Size: 1024},
		{Name: "document_type", Type: field.TypeString, Size: 32, Default: "Unknown"},
		{Name: "vendor_name", Type: field.TypeString, Nullable: true, Size: 512},
		{Name: "vendor_address", Type: field.TypeString, Nullable: true, Size: textSize},
		{Name: "invoice_number", Type: field.TypeString, Nullable: true, Size: 128},
		{Name: "date", Type: field.TypeString, Nullable: true, Size: 10, SchemaType: dateType},
		{Name: "due_date", Type: field.TypeString, Nullable: true, Size: 10, SchemaType: dateType},
		{Name: "total_amount", Type: field.TypeFloat64, Nullable: true, SchemaType: money2},
		{Name: "tax_amount", Type: field.TypeFloat64, Nullable: true, SchemaType: money2},
		{Name: "currency", Type: field.TypeString, Size: 3, Default: "USD"},
		{Name: "summary", Type: field.TypeString, Nullable: true, Size: textSize},
		{Name: "raw_json", Type: field.TypeString, Size: textSize},
		{Name: "confidence", Type: field.TypeFloat64, SchemaType: conf2},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "vendor_key", Type: field.TypeString, Nullable: true, Size: 512},
	}
	// ExtractionsTable holds the schema information for the "extractions" table.
	ExtractionsTable = &schema.Table{
		Name:       tableExtractions,
		Columns:    ExtractionsColumns,
		PrimaryKey: []*schema.Column{ExtractionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "extraction_created_at", Unique: false, Columns: []*schema.Column{ExtractionsColumns[15]}},
			{Name: "extraction_date", Unique: false, Columns: []*schema.Column{ExtractionsColumns[7]}},
		},
	}

	// LineItemsColumns holds the columns for the "line_items" table.
	LineItemsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 128},
		{Name: "extraction_id", Type: field.TypeString, Size: 36},
		{Name: "position", Type: field.TypeInt},
		{Name: "description", Type: field.TypeString, Nullable: true, Size: textSize},
		{Name: "quantity", Type: field.TypeFloat64, Nullable: true, SchemaType: qty2},
		{Name: "unit_price", Type: field.TypeFloat64, Nullable: true, SchemaType: money2},
		{Name: "total", Type: field.TypeFloat64, Nullable: true, SchemaType: money2},
		{Name: "sku", Type: field.TypeString, Nullable: true, Size: 128},
	}
	// LineItemsTable holds the schema information for the "line_items" table.
	LineItemsTable = &schema.Table{
		Name:       tableLineItems,
		Columns:    LineItemsColumns,
		PrimaryKey: []*schema.Column{LineItemsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "line_items_extractions_line_items",
				Columns:    []*schema.Column{LineItemsColumns[1]},
				RefColumns: []*schema.Column{ExtractionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "lineitem_extraction_id_position", Unique: true, Columns: []*schema.Column{LineItemsColumns[1], LineItemsColumns[2]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ExtractionsTable,
		LineItemsTable,
	}
)

func init() {
	LineItemsTable.ForeignKeys[0].RefTable = ExtractionsTable
}

// Migrate creates or upgrades the schema. It is additive and idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		db.logger.Error("schema migration failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	db.logger.Info("schema migration complete", "tables", len(Tables))
	return nil
}
