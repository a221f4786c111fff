package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	auditrepo "github.com/counselhub/counselhub/internal/audit/repository"
	auditservice "github.com/counselhub/counselhub/internal/audit/service"
	"github.com/counselhub/counselhub/internal/clock"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
	ledgerdomain "github.com/counselhub/counselhub/internal/ledger/domain"
	ledgerrepo "github.com/counselhub/counselhub/internal/ledger/repository"
	ledgerservice "github.com/counselhub/counselhub/internal/ledger/service"
	matchingdomain "github.com/counselhub/counselhub/internal/matching/domain"
	"github.com/counselhub/counselhub/internal/observability/metrics"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	"github.com/counselhub/counselhub/internal/withdrawal/domain"
	"github.com/counselhub/counselhub/internal/withdrawal/repository"
	"github.com/counselhub/counselhub/internal/withdrawal/service"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&consultationdomain.ConsultationRequest{},
		&ledgerdomain.Order{},
		&matchingdomain.AdvisorProfile{},
		&domain.WithdrawalRequest{},
		&auditdomain.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(6)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	m, err := metrics.New(metrics.Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fake,
		Repo:    ledgerrepo.Provide(),
		Audit:   auditSvc,
		Metrics: m,
	})

	svc := service.NewService(service.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Repo:   repository.Provide(),
		Ledger: ledgerSvc,
		Audit:  auditSvc,
	})
	return &fixture{db: db, node: node, clock: fake, svc: svc}
}

func (f *fixture) seedAdvisor(t *testing.T) snowflake.ID {
	t.Helper()
	advisorID := f.node.Generate()
	profile := &matchingdomain.AdvisorProfile{
		ID:          advisorID,
		DisplayName: "Payout Advisor",
		Active:      true,
		Available:   true,
	}
	if err := f.db.Create(profile).Error; err != nil {
		t.Fatalf("seed advisor: %v", err)
	}
	return advisorID
}

// seedEarning writes a settled order whose consultation has the given
// status. Only released consultations contribute to the balance.
func (f *fixture) seedEarning(t *testing.T, advisorID snowflake.ID, payout int64, status consultationdomain.Status) {
	t.Helper()
	now := f.clock.Now()

	requestID := f.node.Generate()
	request := &consultationdomain.ConsultationRequest{
		ID:          requestID,
		RequesterID: f.node.Generate(),
		AdvisorID:   &advisorID,
		Tier:        tierdomain.TierPro,
		Status:      status,
		Summary:     "settled consultation",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.db.Create(request).Error; err != nil {
		t.Fatalf("seed request: %v", err)
	}

	fee := payout / 3
	gross := payout + fee
	order := &ledgerdomain.Order{
		ID:          f.node.Generate(),
		PayerID:     request.RequesterID,
		AdvisorID:   &advisorID,
		RequestID:   &requestID,
		ServiceType: ledgerdomain.ServiceTypeConsultation,
		Status:      ledgerdomain.OrderCompleted,
		GrossAmount: gross,
		NetAmount:   gross,
		PlatformFee: &fee,
		Payout:      &payout,
		Currency:    "USD",
		CreatedAt:   now,
		UpdatedAt:   now,
		ConfirmedAt: &now,
	}
	if err := f.db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func TestBalanceDerivesFromReleasedPayouts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	advisor := f.seedAdvisor(t)

	balance, err := f.svc.Balance(ctx, advisor)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("empty balance = %d", balance)
	}

	f.seedEarning(t, advisor, 7_000, consultationdomain.StatusReleased)
	f.seedEarning(t, advisor, 3_000, consultationdomain.StatusReleased)
	// settled order whose consultation never released does not count
	f.seedEarning(t, advisor, 50_000, consultationdomain.StatusCompleted)
	// another advisor's earnings do not leak in
	f.seedEarning(t, f.seedAdvisor(t), 9_000, consultationdomain.StatusReleased)

	balance, err = f.svc.Balance(ctx, advisor)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 10_000 {
		t.Fatalf("balance = %d, want 10000", balance)
	}
}

func TestRequestDeductsOutstandingWithdrawals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	advisor := f.seedAdvisor(t)
	f.seedEarning(t, advisor, 7_000, consultationdomain.StatusReleased)

	if _, err := f.svc.Request(ctx, advisor, 0, nil); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("zero amount: %v", err)
	}
	if _, err := f.svc.Request(ctx, advisor, 7_001, nil); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("over balance: %v", err)
	}

	row, err := f.svc.Request(ctx, advisor, 7_000, map[string]any{"iban": "DE02120300000000202051"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if row.Status != domain.StatusPending {
		t.Fatalf("status = %s", row.Status)
	}

	balance, err := f.svc.Balance(ctx, advisor)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance after request = %d, want 0", balance)
	}

	// the full amount is already spoken for
	if _, err := f.svc.Request(ctx, advisor, 1, nil); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("second request: %v", err)
	}
}

func TestRejectFreesTheBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	advisor := f.seedAdvisor(t)
	admin := f.node.Generate()
	f.seedEarning(t, advisor, 7_000, consultationdomain.StatusReleased)

	row, err := f.svc.Request(ctx, advisor, 5_000, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	balance, _ := f.svc.Balance(ctx, advisor)
	if balance != 2_000 {
		t.Fatalf("balance = %d, want 2000", balance)
	}

	reason := "bank details unverified"
	rejected, err := f.svc.Reject(ctx, row.ID, admin, &reason)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.StatusRejected {
		t.Fatalf("status = %s", rejected.Status)
	}
	if rejected.DecisionReason == nil || *rejected.DecisionReason != reason {
		t.Fatalf("reason = %v", rejected.DecisionReason)
	}

	balance, _ = f.svc.Balance(ctx, advisor)
	if balance != 7_000 {
		t.Fatalf("balance after reject = %d, want 7000", balance)
	}
}

func TestDecisionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	advisor := f.seedAdvisor(t)
	admin := f.node.Generate()
	f.seedEarning(t, advisor, 10_000, consultationdomain.StatusReleased)

	row, err := f.svc.Request(ctx, advisor, 4_000, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	// processing requires an approval first
	if _, err := f.svc.MarkProcessing(ctx, row.ID, admin); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("processing before approval: %v", err)
	}

	f.clock.Advance(time.Hour)
	approved, err := f.svc.Approve(ctx, row.ID, admin)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.StatusApproved {
		t.Fatalf("status = %s", approved.Status)
	}
	if approved.DecidedBy == nil || *approved.DecidedBy != admin {
		t.Fatalf("decided_by = %v", approved.DecidedBy)
	}
	if approved.DecidedAt == nil || !approved.DecidedAt.Equal(f.clock.Now()) {
		t.Fatalf("decided_at = %v", approved.DecidedAt)
	}

	if _, err := f.svc.Approve(ctx, row.ID, admin); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("double approve: %v", err)
	}
	if _, err := f.svc.Reject(ctx, row.ID, admin, nil); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("reject after approval: %v", err)
	}

	processing, err := f.svc.MarkProcessing(ctx, row.ID, admin)
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if processing.Status != domain.StatusProcessing {
		t.Fatalf("status = %s", processing.Status)
	}

	// no payout gateway is wired, so completion must refuse
	if _, err := f.svc.Complete(ctx, row.ID); !errors.Is(err, domain.ErrNotImplemented) {
		t.Fatalf("complete: %v", err)
	}

	if _, err := f.svc.Approve(ctx, f.node.Generate(), admin); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing withdrawal: %v", err)
	}

	list, err := f.svc.ListByAdvisor(ctx, advisor)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != row.ID {
		t.Fatalf("list = %+v", list)
	}
}
