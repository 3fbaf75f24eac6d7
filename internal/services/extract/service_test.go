package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/preprocess"
	"github.com/joseph-ayodele/docextract/internal/repository"
)

const (
	fullResponse = "```json\n" + `{"documentType":"invoice","vendorName":"ACME Corp","invoiceNumber":"INV-9",
"date":"2024-02-03","totalAmount":120.5,"taxAmount":20.5,"currency":"eur",
"lineItems":[{"description":"Widget","quantity":2,"unitPrice":50,"total":100,"sku":"W-1"}],
"summary":"Widgets"}` + "\n```"
	weakResponse = `Here you go: {"vendorName":"ACME"}`
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubPrep struct{}

func (stubPrep) Prepare(context.Context, []byte, string, constants.Strategy) (preprocess.PreparedContent, error) {
	return preprocess.PreparedContent{Images: []string{"cGFnZQ=="}, Pages: 1}, nil
}

type countingProvider struct {
	name  string
	resp  string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Extract(ctx context.Context, _ llm.ExtractRequest) (string, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.resp, p.err
}

type fixture struct {
	svc    *Service
	repo   repository.ExtractionRepository
	local  *countingProvider
	remote *countingProvider
}

func newFixture(t *testing.T, local, remote *countingProvider) fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, "", discard)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := repository.NewExtractionRepository(db, discard)
	var remoteProvider llm.Provider
	if remote != nil {
		remoteProvider = remote
	}
	orch := pipeline.NewOrchestrator(stubPrep{}, pipeline.DefaultStages(local, remoteProvider, constants.LocalConfidenceGate), discard,
		pipeline.WithMaxAttempts(1),
		pipeline.WithRetryBackoff(0),
	)
	return fixture{
		svc:    NewService(repo, orch, discard, WithHealth(db, nil, true)),
		repo:   repo,
		local:  local,
		remote: remote,
	}
}

func pdfUpload(body string) UploadRequest {
	return UploadRequest{Data: []byte("%PDF-1.7\n" + body), ContentType: "application/pdf", Filename: "doc.pdf"}
}

func TestUploadLocalAccepted(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&countingProvider{name: constants.ProviderOllama, resp: fullResponse},
		&countingProvider{name: constants.ProviderOpenAI, resp: fullResponse},
	)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, pdfUpload("one"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Duplicate || res.Provider != constants.ProviderOllama || res.Confidence != 1 {
		t.Errorf("got %+v", res)
	}
	if n := f.remote.calls.Load(); n != 0 {
		t.Errorf("remote called %d times", n)
	}

	got, err := f.svc.Get(ctx, res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DocumentType != string(constants.Invoice) || got.Currency != "EUR" || got.TotalAmount != 120.5 || got.TaxAmount != 20.5 {
		t.Errorf("stored header = %+v", got)
	}
	if got.DocHash != Fingerprint(pdfUpload("one").Data) {
		t.Errorf("doc hash = %s", got.DocHash)
	}
	sku := "W-1"
	want := []entity.LineItem{{ID: res.ID + "_line_0", ExtractionID: res.ID, Description: "Widget", Quantity: 2, UnitPrice: 50, Total: 100, SKU: &sku}}
	if diff := cmp.Diff(want, got.LineItems); diff != "" {
		t.Errorf("line items (-want +got):\n%s", diff)
	}
}

func TestUploadLowLocalScoreFallsThrough(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&countingProvider{name: constants.ProviderOllama, resp: weakResponse},
		&countingProvider{name: constants.ProviderOpenAI, resp: fullResponse},
	)

	res, err := f.svc.Upload(context.Background(), pdfUpload("two"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Provider != constants.ProviderOpenAI {
		t.Errorf("provider = %q, want openai", res.Provider)
	}
	if f.local.calls.Load() != 1 || f.remote.calls.Load() != 1 {
		t.Errorf("calls local=%d remote=%d", f.local.calls.Load(), f.remote.calls.Load())
	}
}

func TestUploadAllProvidersFail(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&countingProvider{name: constants.ProviderOllama, err: errors.New("connection refused")},
		&countingProvider{name: constants.ProviderOpenAI, err: errors.New("timeout")},
	)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, pdfUpload("three"))
	if !errors.Is(err, common.ErrAllProvidersFailed) {
		t.Fatalf("err = %v, want ErrAllProvidersFailed", err)
	}
	page, err := f.svc.List(ctx, entity.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 {
		t.Errorf("stored %d records after failure", page.Total)
	}
}

func TestUploadDuplicateSkipsProviders(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&countingProvider{name: constants.ProviderOllama, resp: fullResponse},
		nil,
	)
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, pdfUpload("dup"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Upload(ctx, pdfUpload("dup"))
	if err != nil {
		t.Fatal(err)
	}
	if !second.Duplicate || second.ID != first.ID || second.Provider != "" || second.Confidence != first.Confidence {
		t.Errorf("duplicate result = %+v, first = %+v", second, first)
	}
	if second.Data["vendorName"] != "ACME Corp" {
		t.Errorf("duplicate data = %v", second.Data)
	}
	if n := f.local.calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}

func TestUploadConcurrentIdenticalStoresOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&countingProvider{name: constants.ProviderOllama, resp: fullResponse, delay: 20 * time.Millisecond},
		nil,
	)
	ctx := context.Background()

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ids      = map[string]int{}
		creators int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Upload(ctx, pdfUpload("same bytes"))
			if err != nil {
				t.Errorf("Upload: %v", err)
				return
			}
			mu.Lock()
			ids[res.ID]++
			if !res.Duplicate {
				creators++
				if res.Provider != constants.ProviderOllama {
					t.Errorf("creator provider = %q, want %q", res.Provider, constants.ProviderOllama)
				}
			} else if res.Provider != "" {
				t.Errorf("duplicate reported provider %q", res.Provider)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != 1 {
		t.Fatalf("distinct ids = %v, want 1", ids)
	}
	page, err := f.svc.List(ctx, entity.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Errorf("stored %d records, want 1", page.Total)
	}
	if c := f.local.calls.Load(); c != 1 {
		t.Errorf("provider called %d times, want 1", c)
	}
	if creators != 1 {
		t.Errorf("%d uploads reported duplicate=false, want exactly 1", creators)
	}
}

func TestUploadSharedFlightOutlivesFirstCaller(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&countingProvider{name: constants.ProviderOllama, resp: fullResponse, delay: 200 * time.Millisecond},
		nil,
	)

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var (
		wg         sync.WaitGroup
		errShort   error
		errLive    error
		liveResult entity.UploadResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errShort = f.svc.Upload(short, pdfUpload("shared bytes"))
	}()
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		liveResult, errLive = f.svc.Upload(context.Background(), pdfUpload("shared bytes"))
	}()
	wg.Wait()

	if !errors.Is(errShort, context.DeadlineExceeded) {
		t.Errorf("short caller err = %v, want context.DeadlineExceeded", errShort)
	}
	if errLive != nil {
		t.Fatalf("live caller failed with another caller's deadline: %v", errLive)
	}
	if liveResult.ID == "" {
		t.Fatal("live caller got no id")
	}
	if _, err := f.svc.Get(context.Background(), liveResult.ID); err != nil {
		t.Errorf("Get(%s): %v", liveResult.ID, err)
	}
	if c := f.local.calls.Load(); c != 1 {
		t.Errorf("provider called %d times, want 1", c)
	}
}

func TestUploadRejectsInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &countingProvider{name: constants.ProviderOllama, resp: fullResponse}, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  UploadRequest
		want error
	}{
		{
			name: "too large checked first",
			req:  UploadRequest{Data: bytes.Repeat([]byte("x"), constants.MaxUploadBytes+1), ContentType: "text/plain", Filename: "a.txt"},
			want: common.ErrFileTooLarge,
		},
		{
			name: "content type not allowed",
			req:  UploadRequest{Data: []byte("hello"), ContentType: "text/plain", Filename: "a.txt"},
			want: common.ErrUnsupportedFileType,
		},
		{
			name: "inferred type not allowed",
			req:  UploadRequest{Data: []byte("hello"), Filename: "notes.txt"},
			want: common.ErrUnsupportedFileType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Upload(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if c := f.local.calls.Load(); c != 0 {
		t.Errorf("provider called %d times for rejected uploads", c)
	}

	res, err := f.svc.Upload(ctx, UploadRequest{Data: []byte("%PDF-1.4 inferred"), Filename: "scan.PDF"})
	if err != nil {
		t.Fatalf("inferred pdf upload: %v", err)
	}
	if res.ID == "" {
		t.Error("expected stored id")
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	t.Parallel()
	a := Fingerprint([]byte("abc"))
	if a != Fingerprint([]byte("abc")) {
		t.Fatal("fingerprint not deterministic")
	}
	if a != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("Fingerprint(abc) = %s", a)
	}
	if a == Fingerprint([]byte("abd")) {
		t.Error("different input, same fingerprint")
	}
}

func TestParseIDs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"all", nil},
		{" ALL ", nil},
		{"a", []string{"a"}},
		{"a, b,,c ", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ParseIDs(tt.in)); diff != "" {
			t.Errorf("ParseIDs(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestExportThroughService(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &countingProvider{name: constants.ProviderOllama, resp: fullResponse}, nil)
	ctx := context.Background()
	if _, err := f.svc.Upload(ctx, pdfUpload("export")); err != nil {
		t.Fatal(err)
	}

	out, err := f.svc.Export(ctx, "csv", "all")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Contains(out.Data, []byte("ACME Corp")) || !bytes.Contains(out.Data, []byte("Widget")) {
		t.Errorf("csv missing data:\n%s", out.Data)
	}
	if _, err := f.svc.Export(ctx, "parquet", ""); !errors.Is(err, common.ErrUnsupportedFormat) {
		t.Errorf("parquet err = %v", err)
	}
}

type fakeChecker struct {
	ok  bool
	err error
}

func (c fakeChecker) Available(context.Context) (bool, error) { return c.ok, c.err }

type fakePinger struct{ err error }

func (p fakePinger) HealthCheck(context.Context, time.Duration) error { return p.err }

func TestHealth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		db    Pinger
		local llm.HealthChecker
		want  entity.Health
	}{
		{"all up", fakePinger{}, fakeChecker{ok: true}, entity.Health{Status: "ok", DatabaseOK: true, OllamaAvailable: true, RemoteEnabled: true}},
		{"model missing", fakePinger{}, fakeChecker{ok: false}, entity.Health{Status: "ok", DatabaseOK: true, RemoteEnabled: true}},
		{"db down", fakePinger{err: errors.New("down")}, fakeChecker{err: errors.New("refused")}, entity.Health{Status: "degraded", RemoteEnabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(nil, nil, discard, WithHealth(tt.db, tt.local, true))
			if diff := cmp.Diff(tt.want, svc.Health(context.Background())); diff != "" {
				t.Errorf("Health (-want +got):\n%s", diff)
			}
		})
	}
}
