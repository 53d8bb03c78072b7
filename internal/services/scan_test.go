package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/emineral/emineral-backend/internal/domain"
)

func seedFakeRecord(t *testing.T, repo *fakeRecordRepo, ownerID uuid.UUID) *domain.Record {
	t.Helper()
	now := time.Now()
	rec := &domain.Record{
		ID:          uuid.New(),
		UserID:      ownerID,
		FormData:    datatypes.JSONMap{"vehicle_no": "MH12AB0001"},
		GeneratedOn: now,
		ValidUpto:   now.Add(24 * time.Hour),
		Status:      domain.StatusActive,
		PublicToken: "ABCD1234EFGH5678",
	}
	if _, err := repo.Create(context.Background(), nil, rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return rec
}

func TestScanService_RecordScan(t *testing.T) {
	recordRepo := newFakeRecordRepo()
	scanRepo := &fakeScanLogRepo{}
	rec := seedFakeRecord(t, recordRepo, uuid.New())
	svc := NewScanService(testLogger(t), recordRepo, scanRepo, nil, nil)

	meta := ScanMeta{
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		IPAddress: "203.0.113.9",
		Referrer:  "https://pass.example.gov.in/",
	}
	if err := svc.RecordScan(context.Background(), rec.ID, meta); err != nil {
		t.Fatalf("RecordScan: %v", err)
	}

	got, err := recordRepo.GetByID(context.Background(), nil, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.TotalScans != 1 {
		t.Fatalf("TotalScans = %d, want 1", got.TotalScans)
	}
	if got.LastScanAt == nil {
		t.Fatalf("LastScanAt not set")
	}

	logs, err := scanRepo.GetByRecordID(context.Background(), nil, rec.ID, 10)
	if err != nil {
		t.Fatalf("GetByRecordID: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("len(logs) = %d, want 1", len(logs))
	}
	if logs[0].Device == nil || *logs[0].Device != "mobile" {
		t.Fatalf("device = %v, want mobile", logs[0].Device)
	}
	if logs[0].Browser == nil {
		t.Fatalf("browser not parsed from user agent")
	}
}

func TestScanService_RecordScan_Concurrent(t *testing.T) {
	recordRepo := newFakeRecordRepo()
	scanRepo := &fakeScanLogRepo{}
	rec := seedFakeRecord(t, recordRepo, uuid.New())
	svc := NewScanService(testLogger(t), recordRepo, scanRepo, nil, nil)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.RecordScan(context.Background(), rec.ID, ScanMeta{})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RecordScan: %v", err)
		}
	}

	got, err := recordRepo.GetByID(context.Background(), nil, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.TotalScans != n {
		t.Fatalf("TotalScans = %d, want %d (lost increments)", got.TotalScans, n)
	}
}

func TestScanService_RecordScan_RepeatSessionStillCounts(t *testing.T) {
	recordRepo := newFakeRecordRepo()
	scanRepo := &fakeScanLogRepo{}
	rec := seedFakeRecord(t, recordRepo, uuid.New())
	svc := NewScanService(testLogger(t), recordRepo, scanRepo, nil, nil).(*scanService)

	// Claim already held: every scan after the first in a session.
	claims := 0
	svc.claimSession = func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
		claims++
		return claims == 1, nil
	}

	meta := ScanMeta{SessionID: "sess-1"}
	for i := 0; i < 3; i++ {
		if err := svc.RecordScan(context.Background(), rec.ID, meta); err != nil {
			t.Fatalf("RecordScan %d: %v", i, err)
		}
	}

	got, err := recordRepo.GetByID(context.Background(), nil, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.TotalScans != 3 {
		t.Fatalf("TotalScans = %d, want 3 (repeat-session scans must count)", got.TotalScans)
	}
	logs, err := scanRepo.GetByRecordID(context.Background(), nil, rec.ID, 10)
	if err != nil {
		t.Fatalf("GetByRecordID: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("len(logs) = %d, want 3 (repeat-session scans must be logged)", len(logs))
	}
}

func TestScanService_RecordScan_MissingID(t *testing.T) {
	svc := NewScanService(testLogger(t), newFakeRecordRepo(), &fakeScanLogRepo{}, nil, nil)
	if err := svc.RecordScan(context.Background(), uuid.Nil, ScanMeta{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestScanService_History_OwnerVerified(t *testing.T) {
	recordRepo := newFakeRecordRepo()
	scanRepo := &fakeScanLogRepo{}
	owner := uuid.New()
	rec := seedFakeRecord(t, recordRepo, owner)
	svc := NewScanService(testLogger(t), recordRepo, scanRepo, nil, nil)

	for i := 0; i < 3; i++ {
		if err := svc.RecordScan(context.Background(), rec.ID, ScanMeta{}); err != nil {
			t.Fatalf("RecordScan: %v", err)
		}
	}

	logs, err := svc.History(context.Background(), owner, rec.ID, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2 (limit)", len(logs))
	}

	if _, err := svc.History(context.Background(), uuid.New(), rec.ID, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger history err = %v, want ErrNotFound", err)
	}
}
