package e2e

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

	"github.com/counselhub/counselhub/internal/actorctx"
	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	auditrepo "github.com/counselhub/counselhub/internal/audit/repository"
	auditservice "github.com/counselhub/counselhub/internal/audit/service"
	"github.com/counselhub/counselhub/internal/clock"
	"github.com/counselhub/counselhub/internal/config"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
	consultationrepo "github.com/counselhub/counselhub/internal/consultation/repository"
	consultationservice "github.com/counselhub/counselhub/internal/consultation/service"
	escrowdomain "github.com/counselhub/counselhub/internal/escrow/domain"
	escrowservice "github.com/counselhub/counselhub/internal/escrow/service"
	ledgerdomain "github.com/counselhub/counselhub/internal/ledger/domain"
	ledgerrepo "github.com/counselhub/counselhub/internal/ledger/repository"
	ledgerservice "github.com/counselhub/counselhub/internal/ledger/service"
	matchingdomain "github.com/counselhub/counselhub/internal/matching/domain"
	matchingrepo "github.com/counselhub/counselhub/internal/matching/repository"
	matchingservice "github.com/counselhub/counselhub/internal/matching/service"
	"github.com/counselhub/counselhub/internal/observability/metrics"
	quotadomain "github.com/counselhub/counselhub/internal/quota/domain"
	quotarepo "github.com/counselhub/counselhub/internal/quota/repository"
	quotaservice "github.com/counselhub/counselhub/internal/quota/service"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	tierrepo "github.com/counselhub/counselhub/internal/tier/repository"
	tierservice "github.com/counselhub/counselhub/internal/tier/service"
	withdrawaldomain "github.com/counselhub/counselhub/internal/withdrawal/domain"
	withdrawalrepo "github.com/counselhub/counselhub/internal/withdrawal/repository"
	withdrawalservice "github.com/counselhub/counselhub/internal/withdrawal/service"
)

// testEnv wires the real services against one in-memory database, the
// same composition the fx app performs at boot.
type testEnv struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock

	consultations consultationdomain.Service
	matching      matchingdomain.Service
	escrow        escrowdomain.Service
	ledger        ledgerdomain.Service
	quota         quotadomain.Service
	withdrawals   withdrawaldomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&consultationdomain.ConsultationRequest{},
		&matchingdomain.AdvisorProfile{},
		&matchingdomain.RequestAssignment{},
		&ledgerdomain.Order{},
		&withdrawaldomain.WithdrawalRequest{},
		&quotadomain.UsageCounter{},
		&tierdomain.TierLimit{},
		&auditdomain.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(12)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	m, err := metrics.New(metrics.Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	holder, err := config.NewTierConfigHolder()
	if err != nil {
		t.Fatalf("tier config: %v", err)
	}
	tierSvc := tierservice.NewService(tierservice.Params{
		DB: db, Log: log, GenID: node, Repo: tierrepo.Provide(), Tiers: holder,
	})
	if err := tierSvc.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("seed tiers: %v", err)
	}

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Repo: auditrepo.Provide(),
	})
	consultationSvc := consultationservice.NewService(consultationservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: consultationrepo.Provide(), Tiers: tierSvc, Audit: auditSvc, Metrics: m,
	})
	matchingSvc := matchingservice.NewService(matchingservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: matchingrepo.Provide(), Consultations: consultationSvc, Audit: auditSvc, Metrics: m,
	})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: ledgerrepo.Provide(), Audit: auditSvc, Metrics: m,
	})
	escrowSvc := escrowservice.NewService(escrowservice.Params{
		DB: db, Log: log, Config: config.Config{PlatformFeeBps: 3000},
		Consultations: consultationSvc, Ledger: ledgerSvc, LedgerRepo: ledgerrepo.Provide(),
		Audit: auditSvc, Metrics: m,
	})
	quotaSvc := quotaservice.NewService(quotaservice.Params{
		Log: log, Clock: fake, Counter: quotarepo.NewStoreCounter(db, node),
		Tiers: tierSvc, Metrics: m,
	})
	withdrawalSvc := withdrawalservice.NewService(withdrawalservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: withdrawalrepo.Provide(), Ledger: ledgerSvc, Audit: auditSvc,
	})

	return &testEnv{
		db:            db,
		node:          node,
		clock:         fake,
		consultations: consultationSvc,
		matching:      matchingSvc,
		escrow:        escrowSvc,
		ledger:        ledgerSvc,
		quota:         quotaSvc,
		withdrawals:   withdrawalSvc,
	}
}

func (env *testEnv) seedAdvisor(t *testing.T, rating, years int64) snowflake.ID {
	t.Helper()
	advisorID := env.node.Generate()
	profile := &matchingdomain.AdvisorProfile{
		ID:              advisorID,
		DisplayName:     "Lifecycle Advisor",
		Active:          true,
		Available:       true,
		RatingScore:     rating,
		ExperienceYears: years,
	}
	if err := env.db.Create(profile).Error; err != nil {
		t.Fatalf("seed advisor: %v", err)
	}
	return advisorID
}

// TestConsultationLifecycle walks one consultation from creation through
// matching, escrow, release, rating and the advisor's withdrawal.
func TestConsultationLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	requesterID := env.node.Generate()
	advisorID := env.seedAdvisor(t, 90, 8)
	env.seedAdvisor(t, 40, 1)

	userCtx := actorctx.WithActor(ctx, actorctx.Actor{ID: requesterID, Role: actorctx.RoleUser})
	advisorCtx := actorctx.WithActor(ctx, actorctx.Actor{ID: advisorID, Role: actorctx.RoleAdvisor})

	// the requester's daily quota admits the consultation chat
	if _, err := env.quota.Enforce(userCtx, requesterID, tierdomain.TierPremium, quotadomain.ActionGeneralChat, 1); err != nil {
		t.Fatalf("quota: %v", err)
	}

	gross := int64(10_000)
	currency := "USD"
	request, err := env.consultations.Create(userCtx, consultationdomain.CreateRequest{
		RequesterID: requesterID,
		Tier:        tierdomain.TierPremium,
		Summary:     "cross-border acquisition structuring",
		GrossAmount: &gross,
		Currency:    &currency,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if request.NetAmount == nil || *request.NetAmount != 9_000 {
		t.Fatalf("net = %v, want 9000 after 1000 bps discount", request.NetAmount)
	}

	ranked, err := env.matching.Match(userCtx, request.ID, matchingdomain.Filters{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(ranked) != 2 || ranked[0].AdvisorID != advisorID {
		t.Fatalf("ranked = %+v, want advisor %d first", ranked, advisorID)
	}

	var assignment matchingdomain.RequestAssignment
	if err := env.db.First(&assignment, "request_id = ? AND advisor_id = ?", request.ID, advisorID).Error; err != nil {
		t.Fatalf("load assignment: %v", err)
	}
	accepted, err := env.matching.Respond(advisorCtx, assignment.ID, advisorID, matchingdomain.DecisionAccept)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if accepted.Status != consultationdomain.StatusAccepted {
		t.Fatalf("status = %s", accepted.Status)
	}

	reserved, err := env.escrow.Reserve(userCtx, request.ID, 0, "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// the session stays closed until the payment gateway confirms
	if _, err := env.escrow.Start(advisorCtx, request.ID); !errors.Is(err, escrowdomain.ErrPaymentNotConfirmed) {
		t.Fatalf("start before confirm: %v", err)
	}
	if _, err := env.ledger.ConfirmGateway(ctx, "stripe", reserved.Order.ID, "pi_lifecycle"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := env.escrow.Start(advisorCtx, request.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	env.clock.Advance(time.Hour)
	if _, err := env.escrow.Complete(advisorCtx, request.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	released, err := env.escrow.Release(ctx, request.ID, nil)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.PlatformFee != 3_000 || released.Payout != 7_000 {
		t.Fatalf("split = fee %d payout %d", released.PlatformFee, released.Payout)
	}

	rated, err := env.consultations.Rate(userCtx, request.ID, 5)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rated.RatingScore == nil || *rated.RatingScore != 5 {
		t.Fatalf("rating = %v", rated.RatingScore)
	}

	// the released payout is now withdrawable, exactly once
	balance, err := env.withdrawals.Balance(ctx, advisorID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 7_000 {
		t.Fatalf("balance = %d, want 7000", balance)
	}

	withdrawal, err := env.withdrawals.Request(advisorCtx, advisorID, 7_000, map[string]any{"iban": "DE02120300000000202051"})
	if err != nil {
		t.Fatalf("withdrawal: %v", err)
	}
	if _, err := env.withdrawals.Request(advisorCtx, advisorID, 1, nil); !errors.Is(err, withdrawaldomain.ErrInsufficientBalance) {
		t.Fatalf("second withdrawal: %v", err)
	}

	adminID := env.node.Generate()
	if _, err := env.withdrawals.Approve(ctx, withdrawal.ID, adminID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := env.withdrawals.MarkProcessing(ctx, withdrawal.ID, adminID); err != nil {
		t.Fatalf("processing: %v", err)
	}
	if _, err := env.withdrawals.Complete(ctx, withdrawal.ID); !errors.Is(err, withdrawaldomain.ErrNotImplemented) {
		t.Fatalf("complete: %v", err)
	}

	// the whole flow left an audit trail
	var audits int64
	if err := env.db.Model(&auditdomain.AuditLog{}).Count(&audits).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if audits == 0 {
		t.Fatal("no audit rows written")
	}
}

// TestCancellationVoidsEscrow covers the abort path: a reserved but
// unconfirmed payment is voided and nothing becomes withdrawable.
func TestCancellationVoidsEscrow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	requesterID := env.node.Generate()
	advisorID := env.seedAdvisor(t, 80, 4)
	userCtx := actorctx.WithActor(ctx, actorctx.Actor{ID: requesterID, Role: actorctx.RoleUser})

	gross := int64(5_000)
	currency := "USD"
	request, err := env.consultations.Create(userCtx, consultationdomain.CreateRequest{
		RequesterID: requesterID,
		Tier:        tierdomain.TierPro,
		Summary:     "terminated engagement",
		GrossAmount: &gross,
		Currency:    &currency,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.matching.Match(userCtx, request.ID, matchingdomain.Filters{}); err != nil {
		t.Fatalf("match: %v", err)
	}
	var assignment matchingdomain.RequestAssignment
	if err := env.db.First(&assignment, "request_id = ?", request.ID).Error; err != nil {
		t.Fatalf("load assignment: %v", err)
	}
	if _, err := env.matching.Respond(ctx, assignment.ID, advisorID, matchingdomain.DecisionAccept); err != nil {
		t.Fatalf("respond: %v", err)
	}
	reserved, err := env.escrow.Reserve(userCtx, request.ID, 0, "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	cancelled, err := env.escrow.Cancel(userCtx, request.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != consultationdomain.StatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}

	order, err := env.ledger.Get(ctx, reserved.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != ledgerdomain.OrderCancelled {
		t.Fatalf("order = %s, want cancelled", order.Status)
	}

	balance, err := env.withdrawals.Balance(ctx, advisorID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}
}
