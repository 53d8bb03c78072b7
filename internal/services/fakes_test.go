package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emineral/emineral-backend/internal/data/repos"
	"github.com/emineral/emineral-backend/internal/domain"
	"github.com/emineral/emineral-backend/internal/platform/gcp"
	"github.com/emineral/emineral-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// fakeBucket keeps uploads in memory, keyed by category/key.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failAll bool
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (b *fakeBucket) objectKey(category gcp.BucketCategory, key string) string {
	return string(category) + "/" + key
}

func (b *fakeBucket) UploadFile(ctx context.Context, category gcp.BucketCategory, key string, file io.Reader) error {
	if b.failAll {
		return fmt.Errorf("bucket unavailable")
	}
	raw, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.objects[b.objectKey(category, key)] = raw
	b.mu.Unlock()
	return nil
}

func (b *fakeBucket) DeleteFile(ctx context.Context, category gcp.BucketCategory, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	full := b.objectKey(category, key)
	delete(b.objects, full)
	b.deleted = append(b.deleted, full)
	return nil
}

func (b *fakeBucket) DownloadFile(ctx context.Context, category gcp.BucketCategory, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	raw, ok := b.objects[b.objectKey(category, key)]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (b *fakeBucket) GetPublicURL(category gcp.BucketCategory, key string) string {
	return "https://storage.test/" + b.objectKey(category, key)
}

func (b *fakeBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fakeRecordRepo is an in-memory repos.RecordRepo with a configurable set of
// already-taken public tokens for collision tests.
type fakeRecordRepo struct {
	mu          sync.Mutex
	records     map[uuid.UUID]*domain.Record
	takenTokens map[string]bool
	createErr   error
	dupFirst    int // first N creates fail with a unique violation
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{
		records:     map[uuid.UUID]*domain.Record{},
		takenTokens: map[string]bool{},
	}
}

var _ repos.RecordRepo = (*fakeRecordRepo)(nil)

func (r *fakeRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *domain.Record) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if r.dupFirst > 0 {
		r.dupFirst--
		return nil, gorm.ErrDuplicatedKey
	}
	if r.takenTokens[record.PublicToken] {
		return nil, gorm.ErrDuplicatedKey
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	r.takenTokens[record.PublicToken] = true
	clone := *record
	r.records[record.ID] = &clone
	return record, nil
}

func (r *fakeRecordRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *fakeRecordRepo) GetByIDForOwner(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.UserID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *fakeRecordRepo) GetByPublicToken(ctx context.Context, tx *gorm.DB, token string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.PublicToken == token {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRecordRepo) ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, filter repos.RecordListFilter) ([]*domain.Record, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Record
	for _, rec := range r.records {
		if rec.UserID != ownerID {
			continue
		}
		if filter.DateFrom != nil && rec.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && rec.CreatedAt.After(*filter.DateTo) {
			continue
		}
		clone := *rec
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *fakeRecordRepo) UpdateArtifactURLs(ctx context.Context, tx *gorm.DB, id uuid.UUID, qrURL, pdfURL *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.QRCodeURL = qrURL
	rec.PDFURL = pdfURL
	return nil
}

func (r *fakeRecordRepo) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.Status = status
	return nil
}

func (r *fakeRecordRepo) IncrementScans(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.TotalScans++
	scanAt := at
	rec.LastScanAt = &scanAt
	return nil
}

func (r *fakeRecordRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *fakeRecordRepo) CountByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, since *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, rec := range r.records {
		if rec.UserID != ownerID {
			continue
		}
		if since != nil && rec.CreatedAt.Before(*since) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *fakeRecordRepo) IDsByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, rec := range r.records {
		if rec.UserID == ownerID {
			ids = append(ids, rec.ID)
		}
	}
	return ids, nil
}

type fakeScanLogRepo struct {
	mu   sync.Mutex
	logs []*domain.ScanLog
}

var _ repos.ScanLogRepo = (*fakeScanLogRepo)(nil)

func (r *fakeScanLogRepo) Create(ctx context.Context, tx *gorm.DB, logs []*domain.ScanLog) ([]*domain.ScanLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range logs {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.ScannedAt.IsZero() {
			l.ScannedAt = time.Now()
		}
		clone := *l
		r.logs = append(r.logs, &clone)
	}
	return logs, nil
}

func (r *fakeScanLogRepo) GetByRecordID(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, limit int) ([]*domain.ScanLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ScanLog
	for _, l := range r.logs {
		if l.RecordID == recordID {
			clone := *l
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScannedAt.After(out[j].ScannedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeScanLogRepo) CountByRecordIDs(ctx context.Context, tx *gorm.DB, recordIDs []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := map[uuid.UUID]bool{}
	for _, id := range recordIDs {
		wanted[id] = true
	}
	var count int64
	for _, l := range r.logs {
		if wanted[l.RecordID] {
			count++
		}
	}
	return count, nil
}

func (r *fakeScanLogRepo) DeleteByRecordID(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*domain.ScanLog
	for _, l := range r.logs {
		if l.RecordID != recordID {
			kept = append(kept, l)
		}
	}
	r.logs = kept
	return nil
}

type fakeAuditLogRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
}

var _ repos.AuditLogRepo = (*fakeAuditLogRepo)(nil)

func (r *fakeAuditLogRepo) Create(ctx context.Context, tx *gorm.DB, entries []*domain.AuditLog) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, e := range entries {
		clone := *e
		r.entries = append(r.entries, &clone)
	}
	return entries, nil
}

func (r *fakeAuditLogRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditLog
	for _, e := range r.entries {
		if e.UserID == userID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

// fakeQRCodeService lets tests break QR generation independently of the PDF.
type fakeQRCodeService struct {
	failGenerate bool
	calls        int
}

var _ QRCodeService = (*fakeQRCodeService)(nil)

func (s *fakeQRCodeService) PublicURL(publicToken string) string {
	return "https://pass.test/records/" + publicToken
}

func (s *fakeQRCodeService) GeneratePNG(url string) ([]byte, error) {
	if s.failGenerate {
		return nil, fmt.Errorf("qr encoder broken")
	}
	return []byte("png-bytes"), nil
}

func (s *fakeQRCodeService) GenerateAndStore(ctx context.Context, recordID, ownerID uuid.UUID, publicToken string) (string, []byte, error) {
	s.calls++
	if s.failGenerate {
		return "", nil, fmt.Errorf("qr encoder broken")
	}
	return "https://storage.test/qr/" + recordID.String() + ".png", []byte("png-bytes"), nil
}

// fakeDocumentService mirrors fakeQRCodeService for the PDF side.
type fakeDocumentService struct {
	failRender bool
	lastQRPNG  []byte
}

var _ DocumentService = (*fakeDocumentService)(nil)

func (s *fakeDocumentService) Render(input DocumentInput) ([]byte, error) {
	if s.failRender {
		return nil, fmt.Errorf("pdf renderer broken")
	}
	s.lastQRPNG = input.QRPNG
	return []byte("%PDF-fake"), nil
}

func (s *fakeDocumentService) GenerateAndStore(ctx context.Context, recordID, ownerID uuid.UUID, input DocumentInput) (string, error) {
	if s.failRender {
		return "", fmt.Errorf("pdf renderer broken")
	}
	s.lastQRPNG = input.QRPNG
	return "https://storage.test/pdf/" + recordID.String() + ".pdf", nil
}
