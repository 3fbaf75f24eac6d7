package entity

import (
	"encoding/json"
	"time"
)

// Extraction is the stored header record for one ingested document.
type Extraction struct {
	ID            string          `json:"id"`
	DocHash       string          `json:"doc_hash"`
	Filename      string          `json:"filename"`
	DocumentType  string          `json:"document_type"`
	VendorName    string          `json:"vendor_name"`
	VendorAddress *string         `json:"vendor_address,omitempty"`
	InvoiceNumber string          `json:"invoice_number"`
	Date          *time.Time      `json:"date,omitempty"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	TotalAmount   float64         `json:"total_amount"`
	TaxAmount     float64         `json:"tax_amount"`
	Currency      string          `json:"currency"`
	Summary       string          `json:"summary"`
	Confidence    float64         `json:"confidence"`
	RawJSON       json.RawMessage `json:"raw_json"`
	CreatedAt     time.Time       `json:"created_at"`
	LineItems     []LineItem      `json:"line_items"`
}

// LineItem is one itemized entry owned by an Extraction.
type LineItem struct {
	ID           string  `json:"id"`
	ExtractionID string  `json:"extraction_id"`
	Description  string  `json:"description"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	Total        float64 `json:"total"`
	SKU          *string `json:"sku,omitempty"`
}
