package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

func newTestRepo(t *testing.T) ExtractionRepository {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := OpenSQLite(ctx, "", logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewExtractionRepository(db, logger)
}

func ymd(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return &d
}

func header(hash, vendor, docType string, date *time.Time) *entity.Extraction {
	return &entity.Extraction{
		DocHash:      hash,
		Filename:     hash + ".pdf",
		DocumentType: docType,
		VendorName:   vendor,
		Date:         date,
		TotalAmount:  10,
		Currency:     "USD",
		Confidence:   0.9,
		RawJSON:      []byte(`{"vendorName":"` + vendor + `"}`),
	}
}

func TestCreateOrGetRoundTrip(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()

	sku := "A-1"
	h := &entity.Extraction{
		DocHash:       "hash-1",
		Filename:      "invoice.pdf",
		DocumentType:  "Invoice",
		VendorName:    "ACME Corp",
		InvoiceNumber: "INV-7",
		Date:          ymd(t, "2024-03-01"),
		TotalAmount:   123.456,
		Currency:      "EUR",
		Summary:       "office supplies",
		Confidence:    0.93,
		RawJSON:       []byte(`{"vendorName":"ACME Corp","totalAmount":123.456}`),
	}
	items := []entity.LineItem{
		{Description: "paper", Quantity: 2, UnitPrice: 5, Total: 10, SKU: &sku},
		{Description: "pens", Quantity: 1, UnitPrice: 3.5, Total: 3.5},
	}

	got, created, err := repo.CreateOrGet(ctx, h, items)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	if !created {
		t.Fatal("expected created=true")
	}
	if got.ID == "" {
		t.Fatal("expected generated id")
	}
	if got.TotalAmount != 123.46 {
		t.Errorf("TotalAmount = %v, want 123.46", got.TotalAmount)
	}
	if got.TaxAmount != 0 {
		t.Errorf("TaxAmount = %v, want 0", got.TaxAmount)
	}
	if got.DueDate != nil {
		t.Errorf("DueDate = %v, want nil", got.DueDate)
	}
	if got.Date == nil || got.Date.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("Date = %v, want 2024-03-01", got.Date)
	}
	if string(got.RawJSON) != string(h.RawJSON) {
		t.Errorf("RawJSON = %s, want %s", got.RawJSON, h.RawJSON)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	wantItems := []entity.LineItem{
		{ID: got.ID + "_line_0", ExtractionID: got.ID, Description: "paper", Quantity: 2, UnitPrice: 5, Total: 10, SKU: &sku},
		{ID: got.ID + "_line_1", ExtractionID: got.ID, Description: "pens", Quantity: 1, UnitPrice: 3.5, Total: 3.5},
	}
	if diff := cmp.Diff(wantItems, got.LineItems); diff != "" {
		t.Errorf("line items mismatch (-want +got):\n%s", diff)
	}

	again, err := repo.Get(ctx, got.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestLineItemsKeepInsertionOrderPastNine(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)

	items := make([]entity.LineItem, 12)
	for i := range items {
		items[i] = entity.LineItem{Description: fmt.Sprintf("item %d", i), Total: float64(i)}
	}
	got, _, err := repo.CreateOrGet(context.Background(), header("many", "V", "Receipt", nil), items)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	if len(got.LineItems) != 12 {
		t.Fatalf("got %d items, want 12", len(got.LineItems))
	}
	for i, it := range got.LineItems {
		if it.Description != fmt.Sprintf("item %d", i) {
			t.Errorf("item %d = %q", i, it.Description)
		}
	}
}

func TestCreateOrGetDuplicateReturnsExisting(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()

	first, created, err := repo.CreateOrGet(ctx, header("dup", "First", "Invoice", nil), nil)
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}
	second, created, err := repo.CreateOrGet(ctx, header("dup", "Second", "Invoice", nil), []entity.LineItem{{Description: "x"}})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if created {
		t.Fatal("expected created=false for duplicate hash")
	}
	if second.ID != first.ID || second.VendorName != "First" {
		t.Errorf("got %s/%s, want existing %s/First", second.ID, second.VendorName, first.ID)
	}
	if len(second.LineItems) != 0 {
		t.Errorf("duplicate must not add items, got %d", len(second.LineItems))
	}
}

func TestCreateOrGetConcurrentSameHash(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[string]bool{}
		creates int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, created, err := repo.CreateOrGet(ctx, header("race", fmt.Sprintf("v%d", i), "Receipt", nil), nil)
			if err != nil {
				t.Errorf("CreateOrGet: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[e.ID] = true
			if created {
				creates++
			}
		}()
	}
	wg.Wait()

	if creates != 1 || len(ids) != 1 {
		t.Fatalf("creates=%d distinct ids=%d, want 1 and 1", creates, len(ids))
	}
	page, err := repo.List(ctx, entity.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("stored rows = %d, want 1", page.Total)
	}
}

func TestGetAndFindByHashNotFound(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if _, err := repo.FindByHash(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("FindByHash err = %v, want ErrNotFound", err)
	}
}

func seed(t *testing.T, repo ExtractionRepository) []string {
	t.Helper()
	rows := []struct {
		hash, vendor, docType, date string
	}{
		{"h1", "ACME Corp", "Invoice", "2024-01-10"},
		{"h2", "acme supplies", "Receipt", "2024-02-15"},
		{"h3", "Globex", "Invoice", "2024-03-20"},
		{"h4", "Initech 100%", "Receipt", "2024-04-01"},
		{"h5", "Umbrella", "Bank Statement", ""},
	}
	var ids []string
	for _, r := range rows {
		var d *time.Time
		if r.date != "" {
			d = ymd(t, r.date)
		}
		e, _, err := repo.CreateOrGet(context.Background(), header(r.hash, r.vendor, r.docType, d), nil)
		if err != nil {
			t.Fatalf("seed %s: %v", r.hash, err)
		}
		ids = append(ids, e.ID)
	}
	return ids
}

func vendors(p *entity.Page) []string {
	out := make([]string, 0, len(p.Extractions))
	for _, e := range p.Extractions {
		out = append(out, e.VendorName)
	}
	return out
}

func TestListFilters(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	seed(t, repo)

	tests := []struct {
		name   string
		filter entity.ListFilter
		want   []string
	}{
		{"all newest first", entity.ListFilter{}, []string{"Umbrella", "Initech 100%", "Globex", "acme supplies", "ACME Corp"}},
		{"vendor case-insensitive", entity.ListFilter{Vendor: "AcMe"}, []string{"acme supplies", "ACME Corp"}},
		{"vendor wildcard is literal", entity.ListFilter{Vendor: "100%"}, []string{"Initech 100%"}},
		{"document type exact", entity.ListFilter{DocumentType: "Invoice"}, []string{"Globex", "ACME Corp"}},
		{"date range inclusive", entity.ListFilter{DateFrom: ymd(t, "2024-02-15"), DateTo: ymd(t, "2024-03-20")}, []string{"Globex", "acme supplies"}},
		{"inverted range empty", entity.ListFilter{DateFrom: ymd(t, "2024-05-01"), DateTo: ymd(t, "2024-01-01")}, []string{}},
		{"conjunctive", entity.ListFilter{Vendor: "acme", DocumentType: "Receipt"}, []string{"acme supplies"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if diff := cmp.Diff(tt.want, vendors(page)); diff != "" {
				t.Errorf("vendors mismatch (-want +got):\n%s", diff)
			}
			if page.Total != len(tt.want) {
				t.Errorf("Total = %d, want %d", page.Total, len(tt.want))
			}
		})
	}
}

func TestListVendorFilterFoldsNonASCII(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, h := range []*entity.Extraction{
		header("u1", "ÄCME GmbH", "Invoice", nil),
		header("u2", "Øresund Shipping", "Receipt", nil),
		header("u3", "acme corp", "Invoice", nil),
	} {
		if _, _, err := repo.CreateOrGet(ctx, h, nil); err != nil {
			t.Fatalf("CreateOrGet %s: %v", h.DocHash, err)
		}
	}

	tests := []struct {
		vendor string
		want   []string
	}{
		{"äcme", []string{"ÄCME GmbH"}},
		{"ÄCME", []string{"ÄCME GmbH"}},
		{"øresund", []string{"Øresund Shipping"}},
		{"ACME", []string{"acme corp"}},
	}
	for _, tt := range tests {
		t.Run(tt.vendor, func(t *testing.T) {
			page, err := repo.List(ctx, entity.ListFilter{Vendor: tt.vendor})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if diff := cmp.Diff(tt.want, vendors(page)); diff != "" {
				t.Errorf("vendors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListPagination(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ids := seed(t, repo)
	ctx := context.Background()

	seen := map[string]bool{}
	for offset := 0; offset < len(ids); offset += 2 {
		page, err := repo.List(ctx, entity.ListFilter{Offset: offset, Limit: 2})
		if err != nil {
			t.Fatalf("List offset %d: %v", offset, err)
		}
		if page.Total != len(ids) {
			t.Errorf("offset %d: Total = %d, want %d", offset, page.Total, len(ids))
		}
		for _, e := range page.Extractions {
			if seen[e.ID] {
				t.Errorf("id %s returned twice", e.ID)
			}
			seen[e.ID] = true
		}
	}
	if len(seen) != len(ids) {
		t.Errorf("union of pages has %d ids, want %d", len(seen), len(ids))
	}

	page, err := repo.List(ctx, entity.ListFilter{Offset: 50})
	if err != nil {
		t.Fatalf("List past end: %v", err)
	}
	if len(page.Extractions) != 0 || page.Total != len(ids) || page.Limit != DefaultListLimit {
		t.Errorf("past end: got %d rows total %d limit %d", len(page.Extractions), page.Total, page.Limit)
	}
}

func TestListBounds(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)

	for _, f := range []entity.ListFilter{
		{Limit: -1},
		{Limit: MaxListLimit + 1},
		{Offset: -1},
	} {
		if _, err := repo.List(context.Background(), f); !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("List(%+v) err = %v, want ErrInvalidInput", f, err)
		}
	}
	if _, err := repo.List(context.Background(), entity.ListFilter{Limit: MaxListLimit}); err != nil {
		t.Errorf("List at max limit: %v", err)
	}
}

func TestExportRows(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()

	withItems, _, err := repo.CreateOrGet(ctx, header("e1", "ACME", "Invoice", ymd(t, "2024-01-01")), []entity.LineItem{
		{Description: "a", Quantity: 1, UnitPrice: 2, Total: 2},
		{Description: "b", Quantity: 3, UnitPrice: 1, Total: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	bare, _, err := repo.CreateOrGet(ctx, header("e2", "Bare", "Receipt", nil), nil)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := repo.ExportRows(ctx, nil)
	if err != nil {
		t.Fatalf("ExportRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	var bareRows, itemRows int
	for _, r := range rows {
		switch r.ID {
		case bare.ID:
			bareRows++
			if r.LineDescription != nil || r.LineTotal != nil {
				t.Errorf("bare extraction has line fields: %+v", r)
			}
		case withItems.ID:
			itemRows++
			if r.LineDescription == nil {
				t.Errorf("expected line fields: %+v", r)
			}
		}
	}
	if bareRows != 1 || itemRows != 2 {
		t.Errorf("bare=%d items=%d, want 1 and 2", bareRows, itemRows)
	}

	only, err := repo.ExportRows(ctx, []string{bare.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(only) != 1 || only[0].ID != bare.ID {
		t.Errorf("selection by id: %+v", only)
	}
	none, err := repo.ExportRows(ctx, []string{})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("empty selection returned %d rows", len(none))
	}
}
