// Package extract is the application surface: upload, lookup, listing, export
// and health, composed from the pipeline and repository.
package extract

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/repository"
)

// Runner is the orchestration step of an upload.
type Runner interface {
	Run(ctx context.Context, data []byte, filename string) (pipeline.Result, error)
}

// Pinger reports storage reachability.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// UploadRequest is one document handed in by a caller.
type UploadRequest struct {
	Data        []byte
	ContentType string
	Filename    string
}

type Service struct {
	repo     repository.ExtractionRepository
	runner   Runner
	exporter *export.Service
	logger   *slog.Logger

	db            Pinger
	local         llm.HealthChecker
	remoteEnabled bool
	healthTimeout time.Duration

	flight singleflight.Group
}

type Option func(*Service)

// WithHealth wires the dependencies Health reports on.
func WithHealth(db Pinger, local llm.HealthChecker, remoteEnabled bool) Option {
	return func(s *Service) {
		s.db = db
		s.local = local
		s.remoteEnabled = remoteEnabled
	}
}

func WithHealthTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.healthTimeout = d
		}
	}
}

func NewService(repo repository.ExtractionRepository, runner Runner, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:          repo,
		runner:        runner,
		exporter:      export.NewService(repo, logger),
		logger:        logger,
		healthTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fingerprint is the hex SHA-256 of the raw document bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Upload validates, deduplicates, extracts and persists one document.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (entity.UploadResult, error) {
	start := time.Now()
	if len(req.Data) > constants.MaxUploadBytes {
		return entity.UploadResult{}, common.FileTooLargeError(len(req.Data), constants.MaxUploadBytes)
	}
	ct := resolveContentType(req.ContentType, req.Filename)
	if !constants.IsAllowedContentType(ct) {
		return entity.UploadResult{}, common.UnsupportedFileTypeError(fmt.Sprintf("content type %q is not allowed", ct))
	}

	hash := Fingerprint(req.Data)
	ctx = common.WithDocHash(ctx, hash)
	reqID := common.RequestIDFromContext(ctx)
	s.logger.Info("upload.received", "req_id", reqID, "filename", req.Filename, "content_type", ct, "bytes", len(req.Data), "doc_hash", hash)

	// Detached from the caller that started it; provider call timeouts bound it.
	var leader bool
	ch := s.flight.DoChan(hash, func() (any, error) {
		leader = true
		return s.upload(context.WithoutCancel(ctx), req, hash)
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		s.logger.Warn("upload.abandoned", "req_id", reqID, "doc_hash", hash, "error", ctx.Err(), "elapsed_ms", time.Since(start).Milliseconds())
		return entity.UploadResult{}, ctx.Err()
	}
	if r.Err != nil {
		s.logger.Error("upload.failed", "req_id", reqID, "doc_hash", hash, "error", r.Err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.UploadResult{}, r.Err
	}
	shared := r.Shared
	res := r.Val.(entity.UploadResult)
	if !leader && !res.Duplicate {
		// joined another caller's upload of the same bytes
		res.Duplicate = true
		res.Provider = ""
	}
	s.logger.Info("upload.done",
		"req_id", reqID,
		"id", res.ID,
		"duplicate", res.Duplicate,
		"shared", shared,
		"provider", res.Provider,
		"confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *Service) upload(ctx context.Context, req UploadRequest, hash string) (entity.UploadResult, error) {
	existing, err := s.repo.FindByHash(ctx, hash)
	switch {
	case err == nil:
		return duplicateResult(existing)
	case !errors.Is(err, common.ErrNotFound):
		return entity.UploadResult{}, err
	}

	result, err := s.runner.Run(ctx, req.Data, req.Filename)
	if err != nil {
		return entity.UploadResult{}, err
	}

	header, items, err := project(result.Record, hash, req.Filename, result.Confidence)
	if err != nil {
		return entity.UploadResult{}, err
	}
	stored, created, err := s.repo.CreateOrGet(ctx, header, items)
	if err != nil {
		return entity.UploadResult{}, err
	}
	if !created {
		return duplicateResult(stored)
	}
	return entity.UploadResult{
		ID:         stored.ID,
		Data:       map[string]any(result.Record),
		Confidence: result.Confidence,
		Provider:   result.Provider,
	}, nil
}

func resolveContentType(ct, filename string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(ct)
}

func duplicateResult(e *entity.Extraction) (entity.UploadResult, error) {
	data, err := decodeRaw(e.RawJSON)
	if err != nil {
		return entity.UploadResult{}, common.PersistenceError("decode stored record", err)
	}
	return entity.UploadResult{
		ID:         e.ID,
		Data:       data,
		Confidence: e.Confidence,
		Duplicate:  true,
	}, nil
}

func decodeRaw(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// project maps a normalized record onto the stored header and line items.
func project(rec llm.Record, hash, filename string, confidence float64) (*entity.Extraction, []entity.LineItem, error) {
	raw, err := llm.Canonical(rec)
	if err != nil {
		return nil, nil, common.PersistenceError("encode record", err)
	}
	total, _ := rec.Number("totalAmount")
	tax, _ := rec.Number("taxAmount")

	h := &entity.Extraction{
		ID:            uuid.NewString(),
		DocHash:       hash,
		Filename:      filename,
		DocumentType:  string(rec.DocumentType()),
		VendorName:    rec.String("vendorName"),
		VendorAddress: rec.OptString("vendorAddress"),
		InvoiceNumber: rec.String("invoiceNumber"),
		Date:          rec.Date("date"),
		DueDate:       rec.Date("dueDate"),
		TotalAmount:   total,
		TaxAmount:     tax,
		Currency:      rec.Currency(),
		Summary:       rec.String("summary"),
		Confidence:    confidence,
		RawJSON:       raw,
	}
	v := common.NewValidator().
		Field("doc_hash", h.DocHash, common.Required).
		Field("currency", h.Currency, common.CurrencyCode)
	if err := v.Err(); err != nil {
		return nil, nil, err
	}

	var items []entity.LineItem
	for _, it := range rec.LineItems() {
		qty, _ := it.Number("quantity")
		unit, _ := it.Number("unitPrice")
		lineTotal, _ := it.Number("total")
		items = append(items, entity.LineItem{
			Description: it.String("description"),
			Quantity:    qty,
			UnitPrice:   unit,
			Total:       lineTotal,
			SKU:         it.OptString("sku"),
		})
	}
	return h, items, nil
}

func (s *Service) Get(ctx context.Context, id string) (*entity.Extraction, error) {
	id = strings.TrimSpace(id)
	if err := common.NewValidator().Field("id", id, common.Required).Err(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f entity.ListFilter) (*entity.Page, error) {
	return s.repo.List(ctx, f)
}

// Export renders extractions in format. idsCSV is a comma-separated id list;
// empty or "all" selects everything.
func (s *Service) Export(ctx context.Context, format, idsCSV string) (*export.File, error) {
	return s.exporter.Export(ctx, format, ParseIDs(idsCSV))
}

// ParseIDs splits a comma-separated id list. Nil means all.
func ParseIDs(idsCSV string) []string {
	idsCSV = strings.TrimSpace(idsCSV)
	if idsCSV == "" || strings.EqualFold(idsCSV, "all") {
		return nil
	}
	ids := []string{}
	for _, p := range strings.Split(idsCSV, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// Health snapshots dependency status. It never fails; problems are reported
// in the result.
func (s *Service) Health(ctx context.Context) entity.Health {
	h := entity.Health{Status: "ok", RemoteEnabled: s.remoteEnabled}
	if s.db != nil {
		if err := s.db.HealthCheck(ctx, s.healthTimeout); err == nil {
			h.DatabaseOK = true
		} else {
			s.logger.Warn("health.database", "error", err)
		}
	}
	if s.local != nil {
		cctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
		ok, err := s.local.Available(cctx)
		cancel()
		if err != nil {
			s.logger.Warn("health.ollama", "error", err)
		}
		h.OllamaAvailable = ok
	}
	if !h.DatabaseOK {
		h.Status = "degraded"
	}
	return h
}
