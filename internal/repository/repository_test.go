package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/marketplace-billing-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, AutoMigrate(db), "migrate")
	return NewRepository(db)
}

func createTestPartner(t *testing.T, repo *Repository) *models.Partner {
	t.Helper()
	partner := &models.Partner{
		Name:                "Test Seller",
		TariffType:          models.TariffPremium,
		MonthlyFeeUsd:       499,
		RevenueSharePercent: 0.04,
		IsActive:            true,
		AIEnabled:           true,
	}
	require.NoError(t, repo.CreatePartner(partner))
	return partner
}

func TestUpsertMonthlyTrackingOverwrites(t *testing.T) {
	repo := newTestRepo(t)
	partner := createTestPartner(t, repo)

	first := &models.MonthlySalesTracking{
		PartnerID:     partner.ID,
		Month:         202508,
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 10_000_000,
		TotalOrders:   40,
		TotalDebtUzs:  400_000,
		LastSyncAt:    time.Now(),
	}
	require.NoError(t, repo.UpsertMonthlyTracking(first))

	// Повторный sync с другими итогами перезаписывает, не накапливает
	second := &models.MonthlySalesTracking{
		PartnerID:     partner.ID,
		Month:         202508,
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 15_000_000,
		TotalOrders:   55,
		TotalDebtUzs:  600_000,
		LastSyncAt:    time.Now(),
	}
	require.NoError(t, repo.UpsertMonthlyTracking(second))

	got, err := repo.GetMonthlyTracking(partner.ID, 202508, models.MarketplaceYandex)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, int64(15_000_000), got.TotalSalesUzs)
	require.Equal(t, 55, got.TotalOrders)
	require.Equal(t, int64(600_000), got.TotalDebtUzs)

	var count int64
	require.NoError(t, repo.DB().Model(&models.MonthlySalesTracking{}).Count(&count).Error)
	require.Equal(t, int64(1), count, "должна остаться одна строка за месяц")
}

func TestSumUnpaidDebt(t *testing.T) {
	repo := newTestRepo(t)
	partner := createTestPartner(t, repo)

	require.NoError(t, repo.UpsertMonthlyTracking(&models.MonthlySalesTracking{
		PartnerID: partner.ID, Month: 202507, Marketplace: models.MarketplaceYandex,
		TotalDebtUzs: 5_000_000, LastSyncAt: time.Now(),
	}))
	require.NoError(t, repo.UpsertMonthlyTracking(&models.MonthlySalesTracking{
		PartnerID: partner.ID, Month: 202508, Marketplace: models.MarketplaceYandex,
		TotalDebtUzs: 3_000_000, LastSyncAt: time.Now(),
	}))

	total, err := repo.SumUnpaidDebt(partner.ID)
	require.NoError(t, err)
	require.Equal(t, int64(8_000_000), total)

	// Оплаченный месяц выпадает из долга
	row, err := repo.GetMonthlyTracking(partner.ID, 202507, models.MarketplaceYandex)
	require.NoError(t, err)
	require.NoError(t, repo.MarkTrackingPaid(row.ID, 5_000_000, time.Now()))

	total, err = repo.SumUnpaidDebt(partner.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3_000_000), total)
}

func TestSumUnpaidDebtEmpty(t *testing.T) {
	repo := newTestRepo(t)
	partner := createTestPartner(t, repo)

	total, err := repo.SumUnpaidDebt(partner.ID)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestGetAITaskByIDUnknown(t *testing.T) {
	repo := newTestRepo(t)

	task, err := repo.GetAITaskByID(99999)
	require.NoError(t, err)
	require.Nil(t, task)
}

func TestGetPartnerAITasksOrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	partner := createTestPartner(t, repo)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		task := &models.AITask{
			PartnerID: partner.ID,
			TaskType:  models.TaskTypeDescription,
			Priority:  models.TaskPriorityMedium,
			Status:    models.TaskStatusPending,
			InputData: "{}",
		}
		require.NoError(t, repo.CreateAITask(task))
		// Разносим created_at, чтобы порядок был детерминированным
		require.NoError(t, repo.DB().Model(task).Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	tasks, err := repo.GetPartnerAITasks(partner.ID, 3)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	require.True(t, tasks[0].CreatedAt.After(tasks[1].CreatedAt))
	require.True(t, tasks[1].CreatedAt.After(tasks[2].CreatedAt))
}

func TestGetOverdueTracking(t *testing.T) {
	repo := newTestRepo(t)
	partner := createTestPartner(t, repo)

	fresh := &models.MonthlySalesTracking{
		PartnerID: partner.ID, Month: 202508, Marketplace: models.MarketplaceYandex,
		TotalDebtUzs: 1_000_000, LastSyncAt: time.Now(),
	}
	require.NoError(t, repo.UpsertMonthlyTracking(fresh))

	old := &models.MonthlySalesTracking{
		PartnerID: partner.ID, Month: 202507, Marketplace: models.MarketplaceYandex,
		TotalDebtUzs: 2_000_000, LastSyncAt: time.Now(),
	}
	require.NoError(t, repo.UpsertMonthlyTracking(old))
	require.NoError(t, repo.DB().Model(&models.MonthlySalesTracking{}).
		Where("month = ?", 202507).
		Update("created_at", time.Now().AddDate(0, 0, -10)).Error)

	cutoff := time.Now().AddDate(0, 0, -7)
	rows, err := repo.GetOverdueTracking(cutoff)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 202507, rows[0].Month)
}
