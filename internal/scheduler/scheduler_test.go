package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	auditrepo "github.com/counselhub/counselhub/internal/audit/repository"
	auditservice "github.com/counselhub/counselhub/internal/audit/service"
	"github.com/counselhub/counselhub/internal/clock"
	matchingdomain "github.com/counselhub/counselhub/internal/matching/domain"
	quotadomain "github.com/counselhub/counselhub/internal/quota/domain"
)

func setupScheduler(t *testing.T, fake *clock.FakeClock, cfg Config) (*Scheduler, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&matchingdomain.RequestAssignment{},
		&quotadomain.UsageCounter{},
		&auditdomain.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	s, err := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Audit:  auditSvc,
		Config: cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s, db
}

func seedAssignment(t *testing.T, db *gorm.DB, id int64, status matchingdomain.AssignmentStatus, createdAt time.Time) {
	t.Helper()
	row := &matchingdomain.RequestAssignment{
		ID:        snowflake.ID(id),
		RequestID: snowflake.ID(id + 1000),
		AdvisorID: snowflake.ID(id + 2000),
		Rank:      1,
		Score:     100,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
}

func TestSweepExpiresStaleOffers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	s, db := setupScheduler(t, fake, Config{AssignmentTTL: 24 * time.Hour})

	seedAssignment(t, db, 1, matchingdomain.AssignmentOffered, now.Add(-25*time.Hour))
	seedAssignment(t, db, 2, matchingdomain.AssignmentOffered, now.Add(-time.Hour))
	seedAssignment(t, db, 3, matchingdomain.AssignmentAccepted, now.Add(-48*time.Hour))

	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	var statuses []matchingdomain.AssignmentStatus
	for _, id := range []int64{1, 2, 3} {
		var row matchingdomain.RequestAssignment
		if err := db.First(&row, "id = ?", id).Error; err != nil {
			t.Fatalf("load %d: %v", id, err)
		}
		statuses = append(statuses, row.Status)
	}
	if statuses[0] != matchingdomain.AssignmentExpired {
		t.Fatalf("stale offer = %s, want expired", statuses[0])
	}
	if statuses[1] != matchingdomain.AssignmentOffered {
		t.Fatalf("fresh offer = %s, want offered", statuses[1])
	}
	if statuses[2] != matchingdomain.AssignmentAccepted {
		t.Fatalf("accepted assignment = %s, must not expire", statuses[2])
	}

	var audits int64
	if err := db.Model(&auditdomain.AuditLog{}).Where("action = ?", "matching.offers_expired").Count(&audits).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if audits != 1 {
		t.Fatalf("audit rows = %d, want 1", audits)
	}

	// a second sweep finds nothing to expire and records no audit entry
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if err := db.Model(&auditdomain.AuditLog{}).Where("action = ?", "matching.offers_expired").Count(&audits).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if audits != 1 {
		t.Fatalf("audit rows after idle sweep = %d, want 1", audits)
	}
}

func TestSweepPrunesOldCounters(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	s, db := setupScheduler(t, fake, Config{CounterRetention: 90 * 24 * time.Hour})

	rows := []quotadomain.UsageCounter{
		{ID: 1, UserID: 10, Day: quotadomain.DayKey(now.Add(-91 * 24 * time.Hour)), GeneralChatCount: 3},
		{ID: 2, UserID: 10, Day: quotadomain.DayKey(now.Add(-89 * 24 * time.Hour)), GeneralChatCount: 2},
		{ID: 3, UserID: 10, Day: quotadomain.DayKey(now), GeneralChatCount: 1},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed counter: %v", err)
		}
	}

	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	var remaining []quotadomain.UsageCounter
	if err := db.Order("id asc").Find(&remaining).Error; err != nil {
		t.Fatalf("load counters: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d rows, want 2", len(remaining))
	}
	if remaining[0].ID != 2 || remaining[1].ID != 3 {
		t.Fatalf("wrong rows survived: %+v", remaining)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.RunInterval != time.Minute {
		t.Fatalf("run interval = %v", cfg.RunInterval)
	}
	if cfg.AssignmentTTL != 24*time.Hour {
		t.Fatalf("assignment ttl = %v", cfg.AssignmentTTL)
	}
	if cfg.CounterRetention != 90*24*time.Hour {
		t.Fatalf("counter retention = %v", cfg.CounterRetention)
	}

	custom := Config{RunInterval: time.Second}.withDefaults()
	if custom.RunInterval != time.Second || custom.AssignmentTTL != 24*time.Hour {
		t.Fatalf("custom = %+v", custom)
	}
}
