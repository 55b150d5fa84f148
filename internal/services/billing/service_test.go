package billing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/marketplace-billing-api/internal/config"
	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		UsdToUzs:             12600,
		GraceDays:            7,
		BlockDays:            14,
		DefaultRevenueShare:  0.04,
		DefaultMonthlyFeeUsd: 499,
		TrialDays:            14,
	}
}

func newTestService(t *testing.T) (*Service, *repository.Repository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, repository.AutoMigrate(db), "migrate")

	repo := repository.NewRepository(db)
	return NewService(db, repo, testBillingConfig()), repo
}

func createPremiumPartner(t *testing.T, repo *repository.Repository) *models.Partner {
	t.Helper()
	partner := &models.Partner{
		Name:                "Tashkent Electronics",
		ContactEmail:        "seller@example.uz",
		TariffType:          models.TariffPremium,
		MonthlyFeeUsd:       499,
		RevenueSharePercent: 0.04,
		IsActive:            true,
		AIEnabled:           true,
	}
	require.NoError(t, repo.CreatePartner(partner))
	return partner
}

func backdateTracking(t *testing.T, repo *repository.Repository, month int, days int) {
	t.Helper()
	require.NoError(t, repo.DB().Model(&models.MonthlySalesTracking{}).
		Where("month = ?", month).
		Update("created_at", time.Now().AddDate(0, 0, -days)).Error)
}

func TestUpdateMonthlySalesCalculation(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	tracking, err := svc.UpdateMonthlySales(partner.ID, 202508, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
		TotalOrders:   120,
	})
	require.NoError(t, err)

	// 50 000 000 × 0.04 = 2 000 000; 499 × 12 600 = 6 287 400
	require.Equal(t, int64(2_000_000), tracking.RevenueShareUzs)
	require.Equal(t, int64(6_287_400), tracking.MonthlyFeeUzs)
	require.Equal(t, int64(8_287_400), tracking.TotalDebtUzs)

	// Кэш долга партнёра пересчитан
	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.Equal(t, int64(8_287_400), got.TotalDebtUzs)
}

func TestUpdateMonthlySalesRounding(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)
	require.NoError(t, repo.UpdatePartnerFields(partner.ID, map[string]interface{}{
		"revenue_share_percent": 0.035,
	}))

	tracking, err := svc.UpdateMonthlySales(partner.ID, 202508, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 1_000_001,
	})
	require.NoError(t, err)

	// 1 000 001 × 0.035 = 35 000.035 → 35 000
	require.Equal(t, int64(35_000), tracking.RevenueShareUzs)
}

func TestUpdateMonthlySalesOverwrite(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	_, err := svc.UpdateMonthlySales(partner.ID, 202508, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
	})
	require.NoError(t, err)

	// Повторный sync с меньшим оборотом: итоги перезаписаны, долг пересчитан вниз
	_, err = svc.UpdateMonthlySales(partner.ID, 202508, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 10_000_000,
	})
	require.NoError(t, err)

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.Equal(t, int64(400_000+6_287_400), got.TotalDebtUzs)
}

func TestUpdatePartnerTotalDebtIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	_, err := svc.UpdateMonthlySales(partner.ID, 202508, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
	})
	require.NoError(t, err)

	// Повторный пересчёт без новых данных не меняет долг
	first, err := svc.UpdatePartnerTotalDebt(partner.ID)
	require.NoError(t, err)
	second, err := svc.UpdatePartnerTotalDebt(partner.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.Equal(t, first, got.TotalDebtUzs)
}

func TestUpdateMonthlySalesUnknownPartner(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateMonthlySales(12345, 202508, &SalesUpdate{
		Marketplace: models.MarketplaceYandex,
	})
	require.Error(t, err)
}

func TestRecordPaymentSetupFee(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)
	require.False(t, partner.SetupPaid)

	payment, err := svc.RecordPayment(&PaymentRequest{
		PartnerID:     partner.ID,
		AmountUzs:     3_000_000,
		PaymentType:   models.PaymentTypeSetupFee,
		PaymentMethod: models.PaymentMethodClick,
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusCompleted, payment.Status)
	require.NotEmpty(t, payment.TransactionID, "transaction_id генерируется автоматически")

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.True(t, got.SetupPaid)
}

func TestRecordPaymentClearsDebtAndUnblocks(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	tracking, err := svc.UpdateMonthlySales(partner.ID, 202507, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
	})
	require.NoError(t, err)

	// Блокируем партнёра вручную
	blockedUntil := time.Now().AddDate(0, 0, 14)
	require.NoError(t, repo.UpdatePartnerFields(partner.ID, map[string]interface{}{
		"blocked_until": blockedUntil,
		"block_reason":  "долг",
		"ai_enabled":    false,
	}))

	_, err = svc.RecordPayment(&PaymentRequest{
		PartnerID:         partner.ID,
		AmountUzs:         tracking.TotalDebtUzs,
		PaymentType:       models.PaymentTypeRevenueShare,
		PaymentMethod:     models.PaymentMethodPayme,
		MonthlyTrackingID: &tracking.ID,
	})
	require.NoError(t, err)

	gotTracking, err := repo.GetTrackingByID(tracking.ID)
	require.NoError(t, err)
	require.True(t, gotTracking.IsPaid)
	require.Equal(t, tracking.TotalDebtUzs, gotTracking.PaidAmountUzs)

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.Zero(t, got.TotalDebtUzs)
	require.Nil(t, got.BlockedUntil, "блокировка снята после полной оплаты")
	require.True(t, got.AIEnabled)
}

func TestPartialPaymentDoesNotUnblock(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	// Два неоплаченных месяца
	t1, err := svc.UpdateMonthlySales(partner.ID, 202506, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
	})
	require.NoError(t, err)
	_, err = svc.UpdateMonthlySales(partner.ID, 202507, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 30_000_000,
	})
	require.NoError(t, err)

	blockedUntil := time.Now().AddDate(0, 0, 14)
	require.NoError(t, repo.UpdatePartnerFields(partner.ID, map[string]interface{}{
		"blocked_until": blockedUntil,
		"ai_enabled":    false,
	}))

	// Оплачен только первый месяц
	_, err = svc.RecordPayment(&PaymentRequest{
		PartnerID:         partner.ID,
		AmountUzs:         t1.TotalDebtUzs,
		PaymentType:       models.PaymentTypeRevenueShare,
		PaymentMethod:     models.PaymentMethodClick,
		MonthlyTrackingID: &t1.ID,
	})
	require.NoError(t, err)

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.Positive(t, got.TotalDebtUzs, "долг за второй месяц остаётся")
	require.NotNil(t, got.BlockedUntil, "частичная оплата блокировку не снимает")
	require.False(t, got.AIEnabled)
}

func TestConfirmManualPayment(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	pending := &models.RevenueSharePayment{
		PartnerID:     partner.ID,
		AmountUzs:     1_000_000,
		PaymentType:   models.PaymentTypeMonthlyFee,
		PaymentMethod: models.PaymentMethodManual,
		Status:        models.PaymentStatusPending,
	}
	require.NoError(t, repo.CreatePayment(pending))

	payment, err := svc.ConfirmManualPayment(pending.ID, 1)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusCompleted, payment.Status)
	require.NotNil(t, payment.ConfirmedBy)
	require.Equal(t, uint(1), *payment.ConfirmedBy)
	require.NotNil(t, payment.CompletedAt)
}

func TestConfirmManualPaymentNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ConfirmManualPayment(9999, 1)
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestConfirmManualPaymentTwice(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	pending := &models.RevenueSharePayment{
		PartnerID:     partner.ID,
		AmountUzs:     500_000,
		PaymentType:   models.PaymentTypeMonthlyFee,
		PaymentMethod: models.PaymentMethodManual,
		Status:        models.PaymentStatusPending,
	}
	require.NoError(t, repo.CreatePayment(pending))

	_, err := svc.ConfirmManualPayment(pending.ID, 1)
	require.NoError(t, err)

	_, err = svc.ConfirmManualPayment(pending.ID, 1)
	require.ErrorIs(t, err, ErrPaymentAlreadyCompleted)
}

func TestCheckAndBlockOverduePartners(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	_, err := svc.UpdateMonthlySales(partner.ID, 202507, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
	})
	require.NoError(t, err)
	backdateTracking(t, repo, 202507, 10)

	result, err := svc.CheckAndBlockOverduePartners()
	require.NoError(t, err)
	require.Equal(t, 1, result.Checked)
	require.Equal(t, 1, result.Blocked)

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BlockedUntil)
	require.False(t, got.AIEnabled)
	require.NotEmpty(t, got.BlockReason)

	// Срок блокировки - 14 дней
	expected := time.Now().AddDate(0, 0, 14)
	require.WithinDuration(t, expected, *got.BlockedUntil, time.Minute)
}

func TestCheckAndBlockSkipsTrial(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)
	require.NoError(t, repo.UpdatePartnerFields(partner.ID, map[string]interface{}{
		"tariff_type": models.TariffTrial,
	}))

	_, err := svc.UpdateMonthlySales(partner.ID, 202507, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
	})
	require.NoError(t, err)
	backdateTracking(t, repo, 202507, 10)

	result, err := svc.CheckAndBlockOverduePartners()
	require.NoError(t, err)
	require.Zero(t, result.Blocked)

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.Nil(t, got.BlockedUntil)
}

func TestCheckAndBlockSkipsWithinGrace(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	// Долг свежий, грейс-период ещё не истёк
	_, err := svc.UpdateMonthlySales(partner.ID, 202508, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
	})
	require.NoError(t, err)

	result, err := svc.CheckAndBlockOverduePartners()
	require.NoError(t, err)
	require.Zero(t, result.Checked)
	require.Zero(t, result.Blocked)

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.Nil(t, got.BlockedUntil)
}

func TestCheckAndBlockGraceBoundary(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	// Долгу ровно 7 дней: грейс-период истёк, партнёр блокируется
	_, err := svc.UpdateMonthlySales(partner.ID, 202507, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
	})
	require.NoError(t, err)
	backdateTracking(t, repo, 202507, 7)

	result, err := svc.CheckAndBlockOverduePartners()
	require.NoError(t, err)
	require.Equal(t, 1, result.Blocked)

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BlockedUntil)
}

func TestCheckAndBlockSixDaysNotOverdue(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	// Долгу 6 дней: на день раньше грейс-периода блокировки нет
	_, err := svc.UpdateMonthlySales(partner.ID, 202507, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
	})
	require.NoError(t, err)
	backdateTracking(t, repo, 202507, 6)

	result, err := svc.CheckAndBlockOverduePartners()
	require.NoError(t, err)
	require.Zero(t, result.Blocked)

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.Nil(t, got.BlockedUntil)
}

func TestUnblockPartnerWithDebt(t *testing.T) {
	svc, repo := newTestService(t)
	partner := createPremiumPartner(t, repo)

	_, err := svc.UpdateMonthlySales(partner.ID, 202507, &SalesUpdate{
		Marketplace:   models.MarketplaceYandex,
		TotalSalesUzs: 50_000_000,
	})
	require.NoError(t, err)

	blockedUntil := time.Now().AddDate(0, 0, 14)
	require.NoError(t, repo.UpdatePartnerFields(partner.ID, map[string]interface{}{
		"blocked_until": blockedUntil,
		"ai_enabled":    false,
	}))

	unblocked, err := svc.UnblockPartner(partner.ID)
	require.NoError(t, err)
	require.False(t, unblocked, "с непогашенным долгом разблокировка запрещена")

	got, err := repo.GetPartnerByID(partner.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BlockedUntil)
}

func TestCheckExpiredTrials(t *testing.T) {
	svc, repo := newTestService(t)

	trialEnd := time.Now().AddDate(0, 0, -1)
	expired := &models.Partner{
		Name:         "Expired Trial Seller",
		TariffType:   models.TariffTrial,
		TrialEndDate: &trialEnd,
		IsActive:     true,
		AIEnabled:    true,
	}
	require.NoError(t, repo.CreatePartner(expired))

	futureEnd := time.Now().AddDate(0, 0, 5)
	active := &models.Partner{
		Name:         "Active Trial Seller",
		TariffType:   models.TariffTrial,
		TrialEndDate: &futureEnd,
		IsActive:     true,
		AIEnabled:    true,
	}
	require.NoError(t, repo.CreatePartner(active))

	count, err := svc.CheckExpiredTrials()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	got, err := repo.GetPartnerByID(expired.ID)
	require.NoError(t, err)
	require.Equal(t, models.TariffExpiredTrial, got.TariffType)
	require.False(t, got.AIEnabled)
	require.False(t, got.IsActive, "партнёр с истёкшим триалом исключается из активных")

	got, err = repo.GetPartnerByID(active.ID)
	require.NoError(t, err)
	require.Equal(t, models.TariffTrial, got.TariffType)
	require.True(t, got.IsActive)
}
