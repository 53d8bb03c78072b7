package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/emineral/emineral-backend/internal/domain"
	"github.com/emineral/emineral-backend/internal/pkg/pubtoken"
)

func PtrString(s string) *string { return &s }

func PtrTime(t time.Time) *time.Time { return &t }

func SeedUser(t *testing.T, tx *gorm.DB) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:       uuid.New(),
		Email:    uuid.NewString() + "@example.com",
		Password: "$2a$10$fixturehashfixturehashfixturehashfixtureha",
		FullName: "Fixture User",
		Role:     domain.RoleTransportUser,
	}
	if err := tx.Create(user).Error; err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return user
}

func SeedRecord(t *testing.T, tx *gorm.DB, ownerID uuid.UUID) *domain.Record {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	record := &domain.Record{
		ID: uuid.New(),
		UserID: ownerID,
		FormData: datatypes.JSONMap{
			"license_no":   "MH-1234",
			"vehicle_no":   "MH12AB0001",
			"mineral_name": "Basalt",
		},
		GeneratedOn: now,
		ValidUpto:   now.Add(24 * time.Hour),
		Status:      domain.StatusActive,
		PublicToken: pubtoken.Generate(),
	}
	if err := tx.Create(record).Error; err != nil {
		t.Fatalf("seeding record: %v", err)
	}
	return record
}

func SeedScanLog(t *testing.T, tx *gorm.DB, recordID uuid.UUID) *domain.ScanLog {
	t.Helper()

	entry := &domain.ScanLog{
		ID:        uuid.New(),
		RecordID:  recordID,
		UserAgent: PtrString("Mozilla/5.0 (fixture)"),
		IPAddress: PtrString("203.0.113.10"),
	}
	if err := tx.Create(entry).Error; err != nil {
		t.Fatalf("seeding scan log: %v", err)
	}
	return entry
}
