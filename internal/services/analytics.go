package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/emineral/emineral-backend/internal/data/repos"
	"github.com/emineral/emineral-backend/internal/platform/logger"
)

// DashboardStats summarizes one issuer's passes for the dashboard.
type DashboardStats struct {
	TotalRecords    int64 `json:"total_records"`
	ActiveRecords   int64 `json:"active_records"`
	RecordsToday    int64 `json:"records_today"`
	RecordsThisWeek int64 `json:"records_this_week"`
	TotalScans      int64 `json:"total_scans"`
}

type AnalyticsService interface {
	DashboardStats(ctx context.Context, ownerID uuid.UUID) (*DashboardStats, error)
}

type analyticsService struct {
	log        *logger.Logger
	recordRepo repos.RecordRepo
	scanRepo   repos.ScanLogRepo
	recordSvc  RecordService

	now func() time.Time
}

func NewAnalyticsService(baseLog *logger.Logger, recordRepo repos.RecordRepo, scanRepo repos.ScanLogRepo, recordSvc RecordService) AnalyticsService {
	serviceLog := baseLog.With("service", "AnalyticsService")
	return &analyticsService{
		log:        serviceLog,
		recordRepo: recordRepo,
		scanRepo:   scanRepo,
		recordSvc:  recordSvc,
		now:        time.Now,
	}
}

// DashboardStats fans the independent counts out concurrently; the slowest
// query bounds the response time.
func (s *analyticsService) DashboardStats(ctx context.Context, ownerID uuid.UUID) (*DashboardStats, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfWeek := startOfDay.AddDate(0, 0, -int(now.Weekday()))

	stats := &DashboardStats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, err := s.recordRepo.CountByOwner(gctx, nil, ownerID, nil)
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		stats.TotalRecords = total
		return nil
	})
	g.Go(func() error {
		count, err := s.recordRepo.CountByOwner(gctx, nil, ownerID, &startOfDay)
		if err != nil {
			return fmt.Errorf("count records today: %w", err)
		}
		stats.RecordsToday = count
		return nil
	})
	g.Go(func() error {
		count, err := s.recordRepo.CountByOwner(gctx, nil, ownerID, &startOfWeek)
		if err != nil {
			return fmt.Errorf("count records this week: %w", err)
		}
		stats.RecordsThisWeek = count
		return nil
	})
	g.Go(func() error {
		ids, err := s.recordRepo.IDsByOwner(gctx, nil, ownerID)
		if err != nil {
			return fmt.Errorf("list record ids: %w", err)
		}
		scans, err := s.scanRepo.CountByRecordIDs(gctx, nil, ids)
		if err != nil {
			return fmt.Errorf("count scans: %w", err)
		}
		stats.TotalScans = scans
		return nil
	})
	g.Go(func() error {
		active, err := s.countActive(gctx, ownerID)
		if err != nil {
			return err
		}
		stats.ActiveRecords = active
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// countActive walks the owner's records because active is time-derived, not
// a stored predicate.
func (s *analyticsService) countActive(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	records, _, err := s.recordSvc.List(ctx, ownerID, RecordFilters{Status: "active", Limit: 10000})
	if err != nil {
		return 0, fmt.Errorf("count active records: %w", err)
	}
	return int64(len(records)), nil
}
