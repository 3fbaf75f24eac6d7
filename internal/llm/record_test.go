package llm

import (
	"encoding/json"
	"testing"

	"github.com/joseph-ayodele/docextract/constants"
)

func TestRecordAccessors(t *testing.T) {
	t.Parallel()
	rec := Record{
		"documentType":  "invoice",
		"vendorName":    " Acme ",
		"invoiceNumber": json.Number("12345"),
		"totalAmount":   "$1,500.25",
		"taxAmount":     json.Number("12.5"),
		"date":          "2024-01-15T00:00:00Z",
		"dueDate":       "soon",
		"currency":      "eur",
		"lineItems":     []any{map[string]any{"description": "a"}, "junk", map[string]any{"description": "b"}},
	}

	if got := rec.String("vendorName"); got != "Acme" {
		t.Errorf("String(vendorName) = %q", got)
	}
	if got := rec.String("invoiceNumber"); got != "12345" {
		t.Errorf("String(invoiceNumber) = %q", got)
	}
	if got, ok := rec.Number("totalAmount"); !ok || got != 1500.25 {
		t.Errorf("Number(totalAmount) = %v, %v", got, ok)
	}
	if got, ok := rec.Number("taxAmount"); !ok || got != 12.5 {
		t.Errorf("Number(taxAmount) = %v, %v", got, ok)
	}
	if _, ok := rec.Number("missing"); ok {
		t.Errorf("Number(missing) reported ok")
	}
	if d := rec.Date("date"); d == nil || d.Format("2006-01-02") != "2024-01-15" {
		t.Errorf("Date(date) = %v", d)
	}
	if d := rec.Date("dueDate"); d != nil {
		t.Errorf("Date(dueDate) = %v, want nil", d)
	}
	if got := rec.Currency(); got != "EUR" {
		t.Errorf("Currency() = %q", got)
	}
	if got := (Record{}).Currency(); got != constants.DefaultCurrency {
		t.Errorf("default Currency() = %q", got)
	}
	if got := rec.DocumentType(); got != constants.Invoice {
		t.Errorf("DocumentType() = %q", got)
	}
	if got := (Record{"documentType": "Memo"}).DocumentType(); got != constants.UnknownDocType {
		t.Errorf("unknown DocumentType() = %q", got)
	}
	if items := rec.LineItems(); len(items) != 2 || items[1].String("description") != "b" {
		t.Errorf("LineItems() = %v", items)
	}
}

func TestValidateRecord(t *testing.T) {
	t.Parallel()
	good, err := Normalize(`{"documentType":"Receipt","vendorName":"Acme","totalAmount":12.5,"date":"2024-01-15","lineItems":[{"description":"x","quantity":1}]}`)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateRecord(good); err != nil {
		t.Fatalf("ValidateRecord(good) = %v", err)
	}

	bad := Record{"documentType": "Memo", "lineItems": "none"}
	if err := ValidateRecord(bad); err == nil {
		t.Fatalf("ValidateRecord(bad) = nil, want error")
	}
}

func TestImageMIME(t *testing.T) {
	t.Parallel()
	jpeg := "/9j/4AAQSkZJRgABAQ" // \xFF\xD8\xFF\xE0...
	if got := ImageMIME(jpeg); got != "image/jpeg" {
		t.Fatalf("ImageMIME(jpeg) = %q", got)
	}
	if got := ImageMIME("not base64!"); got != "image/png" {
		t.Fatalf("fallback = %q", got)
	}
}
