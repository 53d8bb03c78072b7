package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"gorm.io/gorm"

	"github.com/emineral/emineral-backend/internal/data/repos"
	"github.com/emineral/emineral-backend/internal/domain"
	"github.com/emineral/emineral-backend/internal/observability"
	"github.com/emineral/emineral-backend/internal/platform/logger"
	"github.com/emineral/emineral-backend/internal/platform/rediscache"
)

const scanSessionDedupeTTL = 30 * time.Second

// ScanMeta is whatever the public handler could harvest from the request.
// Every field is optional.
type ScanMeta struct {
	UserAgent string
	IPAddress string
	Referrer  string
	SessionID string
}

type ScanService interface {
	RecordScan(ctx context.Context, recordID uuid.UUID, meta ScanMeta) error
	History(ctx context.Context, ownerID, recordID uuid.UUID, limit int) ([]*domain.ScanLog, error)
}

type scanService struct {
	log        *logger.Logger
	recordRepo repos.RecordRepo
	scanRepo   repos.ScanLogRepo
	cache      *rediscache.Cache
	metrics    *observability.Metrics

	now          func() time.Time
	claimSession func(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

func NewScanService(
	baseLog *logger.Logger,
	recordRepo repos.RecordRepo,
	scanRepo repos.ScanLogRepo,
	cache *rediscache.Cache,
	metrics *observability.Metrics,
) ScanService {
	serviceLog := baseLog.With("service", "ScanService")
	return &scanService{
		log:          serviceLog,
		recordRepo:   recordRepo,
		scanRepo:     scanRepo,
		cache:        cache,
		metrics:      metrics,
		now:          time.Now,
		claimSession: cache.ClaimSession,
	}
}

// RecordScan appends an audit row and bumps the record's scan counter. Every
// public view counts: a repeat scan from the same session still writes a log
// row and increments, the session claim only splits the metric so unique and
// repeat scans can be told apart. The counter update is a single atomic
// UPDATE; concurrent scans never lose increments. The audit insert is
// best-effort: a failed row must not cost the count.
func (s *scanService) RecordScan(ctx context.Context, recordID uuid.UUID, meta ScanMeta) error {
	if recordID == uuid.Nil {
		return fmt.Errorf("%w: missing record id", ErrValidation)
	}

	firstInSession := true
	if meta.SessionID != "" {
		key := fmt.Sprintf("scan_session:%s:%s", recordID, meta.SessionID)
		first, err := s.claimSession(ctx, key, scanSessionDedupeTTL)
		if err != nil {
			s.log.Warn("scan session claim unavailable", "error", err)
		} else {
			firstInSession = first
		}
	}

	entry := &domain.ScanLog{
		ID:       uuid.New(),
		RecordID: recordID,
	}
	if meta.UserAgent != "" {
		entry.UserAgent = &meta.UserAgent
		ua := useragent.New(meta.UserAgent)
		if name, version := ua.Browser(); name != "" {
			browser := strings.TrimSpace(name + " " + version)
			entry.Browser = &browser
		}
		device := "desktop"
		if ua.Mobile() {
			device = "mobile"
		} else if ua.Bot() {
			device = "bot"
		}
		entry.Device = &device
	}
	if meta.IPAddress != "" {
		entry.IPAddress = &meta.IPAddress
	}
	if meta.Referrer != "" {
		entry.Referrer = &meta.Referrer
	}
	if meta.SessionID != "" {
		entry.SessionID = &meta.SessionID
	}

	if _, err := s.scanRepo.Create(ctx, nil, []*domain.ScanLog{entry}); err != nil {
		s.log.Warn("scan log insert failed; counter still updated", "record_id", recordID, "error", err)
	}

	if err := s.recordRepo.IncrementScans(ctx, nil, recordID, s.now()); err != nil {
		return fmt.Errorf("increment scan counter: %w", err)
	}
	kind := "public"
	if !firstInSession {
		kind = "repeat"
	}
	s.metrics.IncScan(kind)
	return nil
}

// History returns the most recent scans for a record the caller owns.
func (s *scanService) History(ctx context.Context, ownerID, recordID uuid.UUID, limit int) ([]*domain.ScanLog, error) {
	if _, err := s.recordRepo.GetByIDForOwner(ctx, nil, ownerID, recordID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("verify record owner: %w", err)
	}

	logs, err := s.scanRepo.GetByRecordID(ctx, nil, recordID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch scan history: %w", err)
	}
	return logs, nil
}
