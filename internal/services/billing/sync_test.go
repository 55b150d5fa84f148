package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
	"github.com/user/marketplace-billing-api/internal/services/marketplace"
)

// stubSalesClient возвращает фиксированные итоги или ошибку
type stubSalesClient struct {
	sales *marketplace.MonthlySales
	err   error
}

func (s *stubSalesClient) GetMonthlySales(ctx context.Context, year int, month time.Month) (*marketplace.MonthlySales, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sales, nil
}

func newSyncFixture(t *testing.T) (*SyncService, *Service, *repository.Repository, map[uint]*stubSalesClient) {
	t.Helper()
	svc, repo := newTestService(t)

	clients := make(map[uint]*stubSalesClient)
	factory := func(account models.MarketplaceAccount) (marketplace.SalesClient, error) {
		client, ok := clients[account.ID]
		if !ok {
			return nil, errors.New("нет клиента для кабинета")
		}
		return client, nil
	}

	sync := NewSyncService(repo, svc, factory)
	// В тестах троттлинг не нужен
	sync.limiter.SetLimit(1000)
	return sync, svc, repo, clients
}

func addAccount(t *testing.T, repo *repository.Repository, partnerID uint) *models.MarketplaceAccount {
	t.Helper()
	account := &models.MarketplaceAccount{
		PartnerID:   partnerID,
		Marketplace: models.MarketplaceYandex,
		Name:        "Shop",
		CampaignID:  "123",
		APIToken:    "token",
		IsActive:    true,
	}
	require.NoError(t, repo.CreateMarketplaceAccount(account))
	return account
}

func TestRunDailySyncJob(t *testing.T) {
	sync, _, repo, clients := newSyncFixture(t)
	partner := createPremiumPartner(t, repo)
	account := addAccount(t, repo, partner.ID)

	clients[account.ID] = &stubSalesClient{
		sales: &marketplace.MonthlySales{TotalSalesUzs: 50_000_000, TotalOrders: 120},
	}

	result, err := sync.RunDailySyncJob(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Partners, 1)
	require.Zero(t, result.Failed)
	require.Equal(t, 1, result.Partners[0].Synced)

	month := MonthKey(time.Now())
	tracking, err := repo.GetMonthlyTracking(partner.ID, month, models.MarketplaceYandex)
	require.NoError(t, err)
	require.NotNil(t, tracking)
	require.Equal(t, int64(50_000_000), tracking.TotalSalesUzs)
	require.Equal(t, int64(2_000_000), tracking.RevenueShareUzs)
	require.Equal(t, int64(6_287_400), tracking.MonthlyFeeUzs)
}

func TestRunDailySyncJobPartialFailure(t *testing.T) {
	sync, _, repo, clients := newSyncFixture(t)

	failing := createPremiumPartner(t, repo)
	failingAccount := addAccount(t, repo, failing.ID)
	clients[failingAccount.ID] = &stubSalesClient{err: errors.New("API недоступен")}

	healthy := &models.Partner{
		Name:                "Healthy Seller",
		TariffType:          models.TariffPremium,
		MonthlyFeeUsd:       499,
		RevenueSharePercent: 0.04,
		IsActive:            true,
		AIEnabled:           true,
	}
	require.NoError(t, repo.CreatePartner(healthy))
	healthyAccount := addAccount(t, repo, healthy.ID)
	clients[healthyAccount.ID] = &stubSalesClient{
		sales: &marketplace.MonthlySales{TotalSalesUzs: 10_000_000, TotalOrders: 30},
	}

	result, err := sync.RunDailySyncJob(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Partners, 2)
	require.Equal(t, 1, result.Failed, "ошибка одного партнёра не роняет прогон")

	// Здоровый партнёр синхронизирован несмотря на ошибку соседа
	month := MonthKey(time.Now())
	tracking, err := repo.GetMonthlyTracking(healthy.ID, month, models.MarketplaceYandex)
	require.NoError(t, err)
	require.NotNil(t, tracking)
	require.Equal(t, int64(10_000_000), tracking.TotalSalesUzs)
}

func TestRunDailySyncJobExpiresTrials(t *testing.T) {
	sync, _, repo, _ := newSyncFixture(t)

	trialEnd := time.Now().AddDate(0, 0, -1)
	expired := &models.Partner{
		Name:         "Trial Seller",
		TariffType:   models.TariffTrial,
		TrialEndDate: &trialEnd,
		IsActive:     true,
		AIEnabled:    true,
	}
	require.NoError(t, repo.CreatePartner(expired))

	result, err := sync.RunDailySyncJob(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.TrialExpired)

	got, err := repo.GetPartnerByID(expired.ID)
	require.NoError(t, err)
	require.Equal(t, models.TariffExpiredTrial, got.TariffType)
}

func TestMonthKey(t *testing.T) {
	require.Equal(t, 202508, MonthKey(time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 202601, MonthKey(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))
}
