package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/counselhub/counselhub/internal/config"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	"github.com/counselhub/counselhub/internal/tier/repository"
	"github.com/counselhub/counselhub/internal/tier/service"
)

func newService(t *testing.T) *service.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tierdomain.TierLimit{}))

	node, err := snowflake.NewNode(8)
	require.NoError(t, err)
	holder, err := config.NewTierConfigHolder()
	require.NoError(t, err)

	return service.NewService(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Tiers: holder,
	})
}

func TestSeedDefaultsCreatesAllTiers(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	require.NoError(t, svc.SeedDefaults(ctx))

	free, err := svc.GetByTier(ctx, tierdomain.TierFree)
	require.NoError(t, err)
	require.NotNil(t, free.GeneralChatDaily)
	assert.EqualValues(t, 5, *free.GeneralChatDaily)
	require.NotNil(t, free.AdvisorChatDaily)
	assert.EqualValues(t, 0, *free.AdvisorChatDaily)
	assert.False(t, free.ContractAccess)

	premium, err := svc.GetByTier(ctx, tierdomain.TierPremium)
	require.NoError(t, err)
	assert.Nil(t, premium.GeneralChatDaily, "premium is unlimited")
	assert.EqualValues(t, 1000, premium.DiscountRateBps)
	assert.EqualValues(t, 10, premium.PriorityWeight)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSeedDefaultsKeepsAdminEdits(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	require.NoError(t, svc.SeedDefaults(ctx))

	limit := int64(12)
	_, err := svc.Update(ctx, tierdomain.UpdateTierLimitRequest{
		Tier:             tierdomain.TierFree,
		GeneralChatDaily: &limit,
		PriorityWeight:   2,
	})
	require.NoError(t, err)

	// re-seeding on restart must not roll the edit back
	require.NoError(t, svc.SeedDefaults(ctx))

	free, err := svc.GetByTier(ctx, tierdomain.TierFree)
	require.NoError(t, err)
	require.NotNil(t, free.GeneralChatDaily)
	assert.EqualValues(t, 12, *free.GeneralChatDaily)
}

func TestUpdateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Update(ctx, tierdomain.UpdateTierLimitRequest{Tier: ""})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidTier)

	_, err = svc.Update(ctx, tierdomain.UpdateTierLimitRequest{Tier: tierdomain.TierPro, DiscountRateBps: 10_001})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidDiscount)

	_, err = svc.Update(ctx, tierdomain.UpdateTierLimitRequest{Tier: tierdomain.TierPro, DiscountRateBps: -1})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidDiscount)

	_, err = svc.Update(ctx, tierdomain.UpdateTierLimitRequest{Tier: tierdomain.TierPro, PriorityWeight: -1})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidPriority)

	_, err = svc.GetByTier(ctx, tierdomain.Tier("platinum"))
	assert.ErrorIs(t, err, tierdomain.ErrNotFound)
}
