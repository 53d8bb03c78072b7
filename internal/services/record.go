package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/emineral/emineral-backend/internal/data/repos"
	"github.com/emineral/emineral-backend/internal/domain"
	"github.com/emineral/emineral-backend/internal/observability"
	"github.com/emineral/emineral-backend/internal/pkg/pubtoken"
	"github.com/emineral/emineral-backend/internal/pkg/timestamp"
	"github.com/emineral/emineral-backend/internal/platform/gcp"
	"github.com/emineral/emineral-backend/internal/platform/logger"
	"github.com/emineral/emineral-backend/internal/platform/rediscache"
)

const (
	tokenMaxAttempts   = 5
	publicViewCacheTTL = 30 * time.Second
	artifactTimeout    = 3 * time.Minute
)

// RecordFilters scopes List. DateFrom/DateTo accept YYYY-MM-DD or RFC3339;
// a date-only DateTo covers the whole day.
type RecordFilters struct {
	Status   string
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}

// CreateResult carries the stored record plus whether artifact generation is
// still running in the background.
type CreateResult struct {
	Record           *domain.Record
	ArtifactsPending bool
}

type RecordService interface {
	Create(ctx context.Context, ownerID uuid.UUID, formData map[string]interface{}, validityHours int) (*CreateResult, error)
	GetForOwner(ctx context.Context, ownerID, recordID uuid.UUID) (*domain.Record, error)
	GetPublic(ctx context.Context, tokenOrID string) (*domain.PublicRecordView, error)
	List(ctx context.Context, ownerID uuid.UUID, filters RecordFilters) ([]*domain.Record, int64, error)
	Archive(ctx context.Context, ownerID, recordID uuid.UUID) error
	Delete(ctx context.Context, ownerID, recordID uuid.UUID) error
	DownloadArtifact(ctx context.Context, ownerID, recordID uuid.UUID, kind string) ([]byte, string, error)
}

// RecordServiceConfig tunes creation behavior. SyncArtifacts runs the
// artifact phase inline instead of in a goroutine (tests, CLI tools).
type RecordServiceConfig struct {
	DefaultValidityHours int
	SyncArtifacts        bool
}

type recordService struct {
	log        *logger.Logger
	db         *gorm.DB
	recordRepo repos.RecordRepo
	scanRepo   repos.ScanLogRepo
	auditRepo  repos.AuditLogRepo
	qrSvc      QRCodeService
	docSvc     DocumentService
	bucket     gcp.BucketService
	cache      *rediscache.Cache
	template   FormTemplateService
	metrics    *observability.Metrics
	cfg        RecordServiceConfig

	now func() time.Time
}

func NewRecordService(
	baseLog *logger.Logger,
	db *gorm.DB,
	recordRepo repos.RecordRepo,
	scanRepo repos.ScanLogRepo,
	auditRepo repos.AuditLogRepo,
	qrSvc QRCodeService,
	docSvc DocumentService,
	bucket gcp.BucketService,
	cache *rediscache.Cache,
	template FormTemplateService,
	metrics *observability.Metrics,
	cfg RecordServiceConfig,
) RecordService {
	serviceLog := baseLog.With("service", "RecordService")
	if cfg.DefaultValidityHours <= 0 {
		cfg.DefaultValidityHours = 24
	}
	return &recordService{
		log:        serviceLog,
		db:         db,
		recordRepo: recordRepo,
		scanRepo:   scanRepo,
		auditRepo:  auditRepo,
		qrSvc:      qrSvc,
		docSvc:     docSvc,
		bucket:     bucket,
		cache:      cache,
		template:   template,
		metrics:    metrics,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *recordService) Create(ctx context.Context, ownerID uuid.UUID, formData map[string]interface{}, validityHours int) (*CreateResult, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing owner", ErrValidation)
	}
	if len(formData) == 0 {
		return nil, fmt.Errorf("%w: empty form data", ErrValidation)
	}
	if validityHours <= 0 {
		validityHours = s.cfg.DefaultValidityHours
	}

	now := s.now()
	validUpto := timestamp.AddValidityWindow(now, validityHours)

	data := datatypes.JSONMap{}
	for k, v := range formData {
		data[k] = v
	}
	data[domain.FormKeyGeneratedOn] = timestamp.Format(now)
	data[domain.FormKeyValidUpto] = timestamp.Format(validUpto)

	var record *domain.Record
	for attempt := 0; attempt < tokenMaxAttempts; attempt++ {
		candidate := &domain.Record{
			ID:          uuid.New(),
			UserID:      ownerID,
			FormData:    data,
			GeneratedOn: now,
			ValidUpto:   validUpto,
			Status:      domain.StatusActive,
			PublicToken: pubtoken.Generate(),
		}
		created, err := s.recordRepo.Create(ctx, nil, candidate)
		if err == nil {
			record = created
			break
		}
		if isDuplicateKey(err) {
			s.log.Warn("public token collision; regenerating", "attempt", attempt+1)
			continue
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("exhausted public token attempts")
	}

	s.metrics.IncRecordCreated()

	if s.cfg.SyncArtifacts {
		s.generateArtifacts(ctx, record)
		return &CreateResult{Record: record, ArtifactsPending: false}, nil
	}

	// Detached from the request context: artifact generation outlives the
	// HTTP response.
	go func(rec domain.Record) {
		bg, cancel := context.WithTimeout(context.Background(), artifactTimeout)
		defer cancel()
		s.generateArtifacts(bg, &rec)
	}(*record)

	return &CreateResult{Record: record, ArtifactsPending: true}, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}

// generateArtifacts runs QR → PDF → URL patch → audit. QR and PDF failures
// are independent and tolerated; only the URL patch is a hard error because
// it would strand uploaded blobs invisibly.
func (s *recordService) generateArtifacts(ctx context.Context, record *domain.Record) {
	var qrURL, pdfURL *string
	var qrPNG []byte

	url, png, err := s.qrSvc.GenerateAndStore(ctx, record.ID, record.UserID, record.PublicToken)
	if err != nil {
		s.log.Error("qr generation failed; record stays without qr", "record_id", record.ID, "error", err)
		s.metrics.IncArtifactFailure("qr")
	} else {
		qrURL = &url
		qrPNG = png
	}

	pdfRendered, err := s.docSvc.GenerateAndStore(ctx, record.ID, record.UserID, s.documentInput(record, qrPNG))
	if err != nil {
		s.log.Error("pdf generation failed; record stays without pdf", "record_id", record.ID, "error", err)
		s.metrics.IncArtifactFailure("pdf")
	} else {
		pdfURL = &pdfRendered
	}

	if err := s.recordRepo.UpdateArtifactURLs(ctx, nil, record.ID, qrURL, pdfURL); err != nil {
		s.log.Error("artifact url patch failed", "record_id", record.ID, "error", err)
		return
	}
	record.QRCodeURL = qrURL
	record.PDFURL = pdfURL

	s.invalidatePublicView(ctx, record)
	s.audit(ctx, record.UserID, "record.create", record.ID, map[string]interface{}{
		"public_token": record.PublicToken,
		"qr_code_url":  qrURL,
		"pdf_url":      pdfURL,
	})
}

// documentInput projects form data onto the catalog order; catalog fields
// missing from the submission still print with the "-" placeholder.
func (s *recordService) documentInput(record *domain.Record, qrPNG []byte) DocumentInput {
	var fields []DocumentField
	seen := map[string]bool{
		domain.FormKeyGeneratedOn: true,
		domain.FormKeyValidUpto:   true,
	}
	for _, f := range s.template.Fields() {
		fields = append(fields, DocumentField{
			Label: f.Label,
			Value: record.FormData[f.Name],
			Wrap:  f.Wrap,
		})
		seen[f.Name] = true
	}
	for k, v := range record.FormData {
		if seen[k] {
			continue
		}
		fields = append(fields, DocumentField{Label: k, Value: v})
	}
	return DocumentInput{
		RecordID:    record.ID.String(),
		Fields:      fields,
		GeneratedOn: timestamp.Format(record.GeneratedOn),
		ValidUpto:   timestamp.Format(record.ValidUpto),
		QRPNG:       qrPNG,
	}
}

func (s *recordService) audit(ctx context.Context, userID uuid.UUID, action string, entityID uuid.UUID, values map[string]interface{}) {
	if s.auditRepo == nil {
		return
	}
	_, err := s.auditRepo.Create(ctx, nil, []*domain.AuditLog{{
		ID:         uuid.New(),
		UserID:     userID,
		Action:     action,
		EntityType: "record",
		EntityID:   entityID.String(),
		NewValues:  values,
	}})
	if err != nil {
		s.log.Warn("audit write failed", "action", action, "entity_id", entityID, "error", err)
	}
}

// effectiveStatus is never stored: archived is sticky, otherwise the record
// is active exactly while now has not passed the resolved valid-upto. The
// embedded form value wins over the column when it parses.
func (s *recordService) effectiveStatus(record *domain.Record, now time.Time) string {
	if record.Status == domain.StatusArchived {
		return domain.StatusArchived
	}
	formValue, _ := record.FormData[domain.FormKeyValidUpto].(string)
	resolved := timestamp.ResolveValidUpto(formValue, record.ValidUpto)
	if now.After(resolved) {
		return domain.StatusExpired
	}
	return domain.StatusActive
}

func (s *recordService) withEffectiveStatus(record *domain.Record) *domain.Record {
	record.Status = s.effectiveStatus(record, s.now())
	return record
}

func (s *recordService) GetForOwner(ctx context.Context, ownerID, recordID uuid.UUID) (*domain.Record, error) {
	record, err := s.recordRepo.GetByIDForOwner(ctx, nil, ownerID, recordID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch record: %w", err)
	}
	return s.withEffectiveStatus(record), nil
}

// GetPublic dispatches on shape: hyphenated input must be a record UUID,
// bare input must be a well-formed public token. Anything else is rejected
// before touching storage.
func (s *recordService) GetPublic(ctx context.Context, tokenOrID string) (*domain.PublicRecordView, error) {
	tokenOrID = strings.TrimSpace(tokenOrID)
	if tokenOrID == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrValidation)
	}

	cacheKey := "public_record:" + tokenOrID
	if raw, err := s.cache.GetJSON(ctx, cacheKey); err == nil {
		var view domain.PublicRecordView
		if err := json.Unmarshal(raw, &view); err == nil {
			return &view, nil
		}
	}

	var record *domain.Record
	var err error
	if strings.Contains(tokenOrID, "-") {
		id, parseErr := uuid.Parse(tokenOrID)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: malformed record id", ErrValidation)
		}
		record, err = s.recordRepo.GetByID(ctx, nil, id)
	} else {
		if !pubtoken.Valid(tokenOrID) {
			return nil, fmt.Errorf("%w: malformed public token", ErrValidation)
		}
		record, err = s.recordRepo.GetByPublicToken(ctx, nil, tokenOrID)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch public record: %w", err)
	}

	view := s.publicView(record)
	if raw, err := json.Marshal(view); err == nil {
		if err := s.cache.SetJSON(ctx, cacheKey, raw, publicViewCacheTTL); err != nil {
			s.log.Warn("public view cache write failed", "error", err)
		}
	}
	return view, nil
}

// publicView strips ownership; the verification page never learns who issued
// the pass.
func (s *recordService) publicView(record *domain.Record) *domain.PublicRecordView {
	return &domain.PublicRecordView{
		ID:          record.ID,
		FormData:    record.FormData,
		GeneratedOn: record.GeneratedOn,
		ValidUpto:   record.ValidUpto,
		Status:      s.effectiveStatus(record, s.now()),
		TotalScans:  record.TotalScans,
		QRCodeURL:   record.QRCodeURL,
		PDFURL:      record.PDFURL,
	}
}

func (s *recordService) invalidatePublicView(ctx context.Context, record *domain.Record) {
	if err := s.cache.Delete(ctx,
		"public_record:"+record.ID.String(),
		"public_record:"+record.PublicToken,
	); err != nil {
		s.log.Warn("public view cache invalidation failed", "record_id", record.ID, "error", err)
	}
}

// List pages through the owner's records. total is always the owner- and
// date-scoped storage count; effective status is derived at read time and is
// not indexable, so a status filter narrows the returned page only and total
// keeps its pagination meaning.
func (s *recordService) List(ctx context.Context, ownerID uuid.UUID, filters RecordFilters) ([]*domain.Record, int64, error) {
	switch filters.Status {
	case "", domain.StatusActive, domain.StatusExpired, domain.StatusArchived:
	default:
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, filters.Status)
	}

	listFilter := repos.RecordListFilter{Limit: filters.Limit, Offset: filters.Offset}
	if filters.DateFrom != "" {
		from, err := parseFilterDate(filters.DateFrom, false)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bad date_from", ErrValidation)
		}
		listFilter.DateFrom = &from
	}
	if filters.DateTo != "" {
		to, err := parseFilterDate(filters.DateTo, true)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bad date_to", ErrValidation)
		}
		listFilter.DateTo = &to
	}

	records, total, err := s.recordRepo.ListByOwner(ctx, nil, ownerID, listFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}

	now := s.now()
	if filters.Status == "" {
		for _, record := range records {
			record.Status = s.effectiveStatus(record, now)
		}
		return records, total, nil
	}

	filtered := records[:0]
	for _, record := range records {
		record.Status = s.effectiveStatus(record, now)
		if record.Status == filters.Status {
			filtered = append(filtered, record)
		}
	}
	return filtered, total, nil
}

// parseFilterDate accepts YYYY-MM-DD or RFC3339; endOfDay widens a date-only
// bound to 23:59:59.999.
func parseFilterDate(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Millisecond)
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *recordService) Archive(ctx context.Context, ownerID, recordID uuid.UUID) error {
	record, err := s.recordRepo.GetByIDForOwner(ctx, nil, ownerID, recordID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch record: %w", err)
	}

	if err := s.recordRepo.SetStatus(ctx, nil, record.ID, domain.StatusArchived); err != nil {
		return fmt.Errorf("archive record: %w", err)
	}
	s.invalidatePublicView(ctx, record)
	s.audit(ctx, ownerID, "record.archive", record.ID, map[string]interface{}{"status": domain.StatusArchived})
	return nil
}

// Delete distinguishes "no such record" from "not yours": the owner check
// happens after the fetch so a foreign id gets ErrUnauthorized, not
// ErrNotFound.
func (s *recordService) Delete(ctx context.Context, ownerID, recordID uuid.UUID) error {
	record, err := s.recordRepo.GetByID(ctx, nil, recordID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch record: %w", err)
	}
	if record.UserID != ownerID {
		return ErrUnauthorized
	}

	err = s.inTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.scanRepo.DeleteByRecordID(ctx, tx, record.ID); err != nil {
			return fmt.Errorf("delete scan logs: %w", err)
		}
		if err := s.recordRepo.DeleteByID(ctx, tx, record.ID); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteArtifacts(ctx, record)
	s.invalidatePublicView(ctx, record)
	s.audit(ctx, ownerID, "record.delete", record.ID, map[string]interface{}{"public_token": record.PublicToken})
	return nil
}

// DownloadArtifact streams a stored artifact back to its owner. kind is "qr"
// or "pdf"; it returns the raw bytes and the content type to serve them with.
func (s *recordService) DownloadArtifact(ctx context.Context, ownerID, recordID uuid.UUID, kind string) ([]byte, string, error) {
	record, err := s.recordRepo.GetByIDForOwner(ctx, nil, ownerID, recordID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("fetch record: %w", err)
	}

	var (
		rawURL      *string
		prefix      string
		category    gcp.BucketCategory
		contentType string
	)
	switch kind {
	case "qr":
		rawURL, prefix, category, contentType = record.QRCodeURL, "qr-codes/", gcp.BucketCategoryQR, "image/png"
	case "pdf":
		rawURL, prefix, category, contentType = record.PDFURL, "pdfs/", gcp.BucketCategoryPDF, "application/pdf"
	default:
		return nil, "", fmt.Errorf("%w: unknown artifact kind %q", ErrValidation, kind)
	}
	if rawURL == nil {
		return nil, "", fmt.Errorf("%w: artifact not generated yet", ErrNotFound)
	}
	if s.bucket == nil {
		return nil, "", fmt.Errorf("object storage not configured")
	}
	key := blobKeyFromURL(*rawURL, prefix)
	if key == "" {
		return nil, "", fmt.Errorf("artifact url carries no storage key")
	}

	reader, err := s.bucket.DownloadFile(ctx, category, key)
	if err != nil {
		return nil, "", fmt.Errorf("download artifact: %w", err)
	}
	defer reader.Close()
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("read artifact: %w", err)
	}
	return raw, contentType, nil
}

func (s *recordService) inTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// deleteArtifacts removes blobs best-effort; a leaked object is preferable to
// a failed delete.
func (s *recordService) deleteArtifacts(ctx context.Context, record *domain.Record) {
	if s.bucket == nil {
		return
	}
	if record.QRCodeURL != nil {
		if key := blobKeyFromURL(*record.QRCodeURL, "qr-codes/"); key != "" {
			if err := s.bucket.DeleteFile(ctx, gcp.BucketCategoryQR, key); err != nil {
				s.log.Warn("qr blob delete failed", "record_id", record.ID, "error", err)
			}
		}
	}
	if record.PDFURL != nil {
		if key := blobKeyFromURL(*record.PDFURL, "pdfs/"); key != "" {
			if err := s.bucket.DeleteFile(ctx, gcp.BucketCategoryPDF, key); err != nil {
				s.log.Warn("pdf blob delete failed", "record_id", record.ID, "error", err)
			}
		}
	}
}

func blobKeyFromURL(rawURL, prefix string) string {
	idx := strings.Index(rawURL, prefix)
	if idx < 0 {
		return ""
	}
	key := rawURL[idx:]
	if q := strings.Index(key, "?"); q >= 0 {
		key = key[:q]
	}
	return key
}
