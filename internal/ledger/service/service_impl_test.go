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
	"github.com/counselhub/counselhub/internal/ledger/domain"
	"github.com/counselhub/counselhub/internal/ledger/repository"
	"github.com/counselhub/counselhub/internal/ledger/service"
	"github.com/counselhub/counselhub/internal/observability/metrics"
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
	if err := db.AutoMigrate(&domain.Order{}, &auditdomain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(5)
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

	svc := service.NewService(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fake,
		Repo:    repository.Provide(),
		Audit:   auditSvc,
		Metrics: m,
	})
	return &fixture{db: db, node: node, clock: fake, svc: svc}
}

func (f *fixture) append(t *testing.T, order *domain.Order) *domain.Order {
	t.Helper()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.AppendTx(context.Background(), tx, order)
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return order
}

func TestAppendFillsDefaults(t *testing.T) {
	f := newFixture(t)

	order := f.append(t, &domain.Order{
		PayerID:     f.node.Generate(),
		GrossAmount: 5_000,
		NetAmount:   4_500,
		Currency:    "USD",
	})
	if order.ID == 0 {
		t.Fatal("id not generated")
	}
	if order.Status != domain.OrderPending {
		t.Fatalf("status = %s", order.Status)
	}
	if order.ServiceType != domain.ServiceTypeConsultation {
		t.Fatalf("service type = %s", order.ServiceType)
	}
	if !order.CreatedAt.Equal(f.clock.Now()) {
		t.Fatalf("created_at = %v", order.CreatedAt)
	}
}

func TestAppendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payer := f.node.Generate()

	cases := []struct {
		name  string
		order domain.Order
		want  error
	}{
		{"zero gross", domain.Order{PayerID: payer, NetAmount: 1, Currency: "USD"}, domain.ErrInvalidAmount},
		{"net above gross", domain.Order{PayerID: payer, GrossAmount: 100, NetAmount: 200, Currency: "USD"}, domain.ErrInvalidAmount},
		{"no currency", domain.Order{PayerID: payer, GrossAmount: 100, NetAmount: 100, Currency: "  "}, domain.ErrInvalidCurrency},
	}
	for _, tc := range cases {
		err := f.db.Transaction(func(tx *gorm.DB) error {
			return f.svc.AppendTx(ctx, tx, &tc.order)
		})
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestConfirmGatewayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order := f.append(t, &domain.Order{
		PayerID:     f.node.Generate(),
		GrossAmount: 8_000,
		NetAmount:   8_000,
		Currency:    "USD",
	})

	f.clock.Advance(time.Minute)
	first, err := f.svc.ConfirmGateway(ctx, "stripe", order.ID, "pi_abc")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if first.Status != domain.OrderCompleted {
		t.Fatalf("status = %s", first.Status)
	}
	if first.ConfirmedAt == nil || !first.ConfirmedAt.Equal(f.clock.Now()) {
		t.Fatalf("confirmed_at = %v", first.ConfirmedAt)
	}
	if first.GatewayProvider == nil || *first.GatewayProvider != "stripe" {
		t.Fatalf("provider = %v", first.GatewayProvider)
	}

	// webhook redelivery: same reference settles to a no-op
	f.clock.Advance(time.Minute)
	again, err := f.svc.ConfirmGateway(ctx, "stripe", order.ID, "pi_abc")
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !again.ConfirmedAt.Equal(*first.ConfirmedAt) {
		t.Fatalf("redelivery moved confirmed_at: %v", again.ConfirmedAt)
	}

	// a different reference on a settled order is a conflict
	if _, err := f.svc.ConfirmGateway(ctx, "stripe", order.ID, "pi_other"); !errors.Is(err, domain.ErrGatewayRefMismatch) {
		t.Fatalf("ref mismatch: %v", err)
	}
}

func TestConfirmGatewayRejectsBadStates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order := f.append(t, &domain.Order{
		PayerID:     f.node.Generate(),
		GrossAmount: 3_000,
		NetAmount:   3_000,
		Currency:    "USD",
	})

	if _, err := f.svc.ConfirmGateway(ctx, "stripe", order.ID, "   "); !errors.Is(err, domain.ErrInvalidGatewayRef) {
		t.Fatalf("blank ref: %v", err)
	}
	if _, err := f.svc.ConfirmGateway(ctx, "stripe", f.node.Generate(), "pi_x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing order: %v", err)
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.CancelTx(ctx, tx, order.ID)
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.ConfirmGateway(ctx, "stripe", order.ID, "pi_x"); !errors.Is(err, domain.ErrInvalidOrderState) {
		t.Fatalf("confirm cancelled: %v", err)
	}
}

func TestSettleReleaseGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order := f.append(t, &domain.Order{
		PayerID:     f.node.Generate(),
		GrossAmount: 10_000,
		NetAmount:   9_000,
		Currency:    "USD",
	})

	settle := func(fee, payout int64) error {
		return f.db.Transaction(func(tx *gorm.DB) error {
			_, err := f.svc.SettleReleaseTx(ctx, tx, order.ID, fee, payout)
			return err
		})
	}

	// unsettled orders hold no releasable funds
	if err := settle(3_000, 7_000); !errors.Is(err, domain.ErrInvalidOrderState) {
		t.Fatalf("settle pending: %v", err)
	}

	if _, err := f.svc.ConfirmGateway(ctx, "stripe", order.ID, "pi_settle"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// fee and payout must partition the gross amount exactly
	if err := settle(3_000, 6_000); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("short split: %v", err)
	}
	if err := settle(-1, 10_001); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("negative fee: %v", err)
	}

	if err := settle(3_000, 7_000); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := settle(3_000, 7_000); !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("double settle: %v", err)
	}
}

func TestAnonymizePayerMovesOrdersToSentinel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	payer := f.node.Generate()
	other := f.node.Generate()
	first := f.append(t, &domain.Order{PayerID: payer, GrossAmount: 1_000, NetAmount: 1_000, Currency: "USD"})
	second := f.append(t, &domain.Order{PayerID: payer, GrossAmount: 2_000, NetAmount: 2_000, Currency: "USD"})
	kept := f.append(t, &domain.Order{PayerID: other, GrossAmount: 3_000, NetAmount: 3_000, Currency: "USD"})

	moved, err := f.svc.AnonymizePayer(ctx, payer)
	if err != nil {
		t.Fatalf("anonymize: %v", err)
	}
	if moved != 2 {
		t.Fatalf("moved = %d, want 2", moved)
	}

	for _, id := range []snowflake.ID{first.ID, second.ID} {
		row, err := f.svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if row.PayerID != domain.AnonymizedPayerID {
			t.Fatalf("payer = %d, want sentinel", row.PayerID)
		}
	}
	untouched, err := f.svc.Get(ctx, kept.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if untouched.PayerID != other {
		t.Fatalf("unrelated payer rewritten: %d", untouched.PayerID)
	}

	// the sentinel itself can never be anonymized
	if _, err := f.svc.AnonymizePayer(ctx, domain.AnonymizedPayerID); !errors.Is(err, domain.ErrSentinelPayer) {
		t.Fatalf("sentinel: %v", err)
	}
	if _, err := f.svc.AnonymizePayer(ctx, 0); !errors.Is(err, domain.ErrSentinelPayer) {
		t.Fatalf("zero payer: %v", err)
	}
}

func TestFindByRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	requestID := f.node.Generate()
	order := f.append(t, &domain.Order{
		PayerID:     f.node.Generate(),
		RequestID:   &requestID,
		GrossAmount: 2_500,
		NetAmount:   2_500,
		Currency:    "USD",
	})

	found, err := f.svc.FindByRequest(ctx, requestID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != order.ID {
		t.Fatalf("found order %d, want %d", found.ID, order.ID)
	}

	if _, err := f.svc.FindByRequest(ctx, f.node.Generate()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}
