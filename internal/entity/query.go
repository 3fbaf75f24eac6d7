package entity

import "time"

// ListFilter composes conjunctively; zero values mean "no constraint".
type ListFilter struct {
	DateFrom     *time.Time
	DateTo       *time.Time
	Vendor       string
	DocumentType string
	Offset       int
	Limit        int
}

// Page is one window of a filtered listing.
type Page struct {
	Extractions []Extraction `json:"extractions"`
	Total       int          `json:"total"`
	Offset      int          `json:"offset"`
	Limit       int          `json:"limit"`
}

// ExportRow is one (extraction, line item) pair of the flat export. Line fields
// are nil when the extraction has no items.
type ExportRow struct {
	ID              string
	Filename        string
	DocumentType    string
	VendorName      string
	TotalAmount     float64
	Currency        string
	Date            *time.Time
	InvoiceNumber   string
	TaxAmount       float64
	Summary         string
	LineDescription *string
	LineQuantity    *float64
	LineUnitPrice   *float64
	LineTotal       *float64
	LineSKU         *string
}
