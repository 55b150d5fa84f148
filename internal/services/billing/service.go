package billing

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/user/marketplace-billing-api/internal/config"
	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
	"gorm.io/gorm"
)

// Ошибки подтверждения платежей
var (
	ErrPaymentNotFound         = errors.New("платёж не найден")
	ErrPaymentAlreadyCompleted = errors.New("платёж уже подтверждён")
)

// Notifier отправляет уведомления партнёрам (email)
type Notifier interface {
	NotifyPartnerBlocked(partner *models.Partner, debtUzs int64)
	NotifyPaymentReceived(partner *models.Partner, amountUzs int64)
}

// Service - сервис биллинга: расчёт revenue share, долги, блокировки
type Service struct {
	db       *gorm.DB
	repo     *repository.Repository
	cfg      config.BillingConfig
	notifier Notifier // может быть nil
}

// NewService создаёт новый сервис биллинга
func NewService(db *gorm.DB, repo *repository.Repository, cfg config.BillingConfig) *Service {
	return &Service{
		db:   db,
		repo: repo,
		cfg:  cfg,
	}
}

// SetNotifier подключает сервис уведомлений
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// MonthKey возвращает ключ месяца в формате YYYYMM
func MonthKey(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}

// SalesUpdate - итоги продаж за месяц по одному маркетплейсу
type SalesUpdate struct {
	Marketplace   string `json:"marketplace"`
	TotalSalesUzs int64  `json:"total_sales_uzs"`
	TotalOrders   int    `json:"total_orders"`
}

// UpdateMonthlySales записывает продажи партнёра за месяц и пересчитывает начисления.
// Revenue share округляется до целого сума, абонплата конвертируется по
// фиксированному курсу. Повторный вызов за тот же месяц перезаписывает итоги.
func (s *Service) UpdateMonthlySales(partnerID uint, month int, update *SalesUpdate) (*models.MonthlySalesTracking, error) {
	partner, err := s.repo.GetPartnerByID(partnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, fmt.Errorf("партнёр %d не найден", partnerID)
	}

	revenueShareUzs := int64(math.Round(float64(update.TotalSalesUzs) * partner.RevenueSharePercent))
	monthlyFeeUzs := partner.MonthlyFeeUsd * s.cfg.UsdToUzs

	tracking := &models.MonthlySalesTracking{
		PartnerID:       partnerID,
		Month:           month,
		Marketplace:     update.Marketplace,
		TotalSalesUzs:   update.TotalSalesUzs,
		TotalOrders:     update.TotalOrders,
		RevenueShareUzs: revenueShareUzs,
		MonthlyFeeUzs:   monthlyFeeUzs,
		TotalDebtUzs:    revenueShareUzs + monthlyFeeUzs,
		LastSyncAt:      time.Now(),
	}

	if err := s.repo.UpsertMonthlyTracking(tracking); err != nil {
		return nil, fmt.Errorf("ошибка сохранения продаж: %w", err)
	}

	if _, err := s.UpdatePartnerTotalDebt(partnerID); err != nil {
		return nil, err
	}

	log.Printf("[Billing] Партнёр %d, месяц %d (%s): продажи %d UZS, начислено %d UZS",
		partnerID, month, update.Marketplace, update.TotalSalesUzs, tracking.TotalDebtUzs)

	return tracking, nil
}

// UpdatePartnerTotalDebt пересчитывает кэшированный долг партнёра.
// Единственная точка пересчёта: сумма неоплаченных месяцев, никогда не инкремент.
func (s *Service) UpdatePartnerTotalDebt(partnerID uint) (int64, error) {
	return recomputeDebt(s.repo, partnerID)
}

// recomputeDebt пересчитывает долг через переданный репозиторий (для транзакций)
func recomputeDebt(repo *repository.Repository, partnerID uint) (int64, error) {
	totalDebt, err := repo.SumUnpaidDebt(partnerID)
	if err != nil {
		return 0, fmt.Errorf("ошибка расчёта долга: %w", err)
	}

	if err := repo.UpdatePartnerFields(partnerID, map[string]interface{}{
		"total_debt_uzs": totalDebt,
	}); err != nil {
		return 0, fmt.Errorf("ошибка обновления долга: %w", err)
	}

	return totalDebt, nil
}

// PaymentRequest - запрос на регистрацию платежа
type PaymentRequest struct {
	PartnerID         uint   `json:"partner_id"`
	AmountUzs         int64  `json:"amount_uzs"`
	PaymentType       string `json:"payment_type"`   // revenue_share, monthly_fee, setup_fee
	PaymentMethod     string `json:"payment_method"` // click, payme, manual
	MonthlyTrackingID *uint  `json:"monthly_tracking_id,omitempty"`
	TransactionID     string `json:"transaction_id,omitempty"`
}

// RecordPayment регистрирует подтверждённый платёж: помечает месяц оплаченным,
// пересчитывает долг и пытается снять блокировку. Всё в одной транзакции.
func (s *Service) RecordPayment(req *PaymentRequest) (*models.RevenueSharePayment, error) {
	partner, err := s.repo.GetPartnerByID(req.PartnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, fmt.Errorf("партнёр %d не найден", req.PartnerID)
	}

	now := time.Now()
	payment := &models.RevenueSharePayment{
		PartnerID:         req.PartnerID,
		MonthlyTrackingID: req.MonthlyTrackingID,
		AmountUzs:         req.AmountUzs,
		PaymentType:       req.PaymentType,
		PaymentMethod:     req.PaymentMethod,
		TransactionID:     req.TransactionID,
		Status:            models.PaymentStatusCompleted,
		CompletedAt:       &now,
	}
	if payment.TransactionID == "" {
		payment.TransactionID = uuid.NewString()
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)

		if err := r.CreatePayment(payment); err != nil {
			return fmt.Errorf("ошибка создания платежа: %w", err)
		}

		return s.applyPayment(r, partner, payment, now)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyPaymentReceived(partner, payment.AmountUzs)
	}

	log.Printf("[Billing] Платёж #%d на %d UZS (%s) зарегистрирован, партнёр %d",
		payment.ID, payment.AmountUzs, payment.PaymentType, payment.PartnerID)

	return payment, nil
}

// applyPayment применяет эффекты завершённого платежа внутри транзакции
func (s *Service) applyPayment(r *repository.Repository, partner *models.Partner, payment *models.RevenueSharePayment, now time.Time) error {
	// Setup fee: единовременный платёж за подключение
	if payment.PaymentType == models.PaymentTypeSetupFee {
		if err := r.UpdatePartnerFields(partner.ID, map[string]interface{}{
			"setup_paid": true,
		}); err != nil {
			return fmt.Errorf("ошибка обновления setup_paid: %w", err)
		}
	}

	// Платёж за конкретный месяц: помечаем строку оплаченной
	if payment.MonthlyTrackingID != nil {
		if err := r.MarkTrackingPaid(*payment.MonthlyTrackingID, payment.AmountUzs, now); err != nil {
			return fmt.Errorf("ошибка отметки оплаты месяца: %w", err)
		}
	}

	// Долг всегда пересчитывается после платежа
	totalDebt, err := recomputeDebt(r, partner.ID)
	if err != nil {
		return err
	}

	// Пробуем снять блокировку: частичная оплата блокировку не снимает
	if partner.BlockedUntil != nil && totalDebt <= 0 {
		if err := unblock(r, partner.ID); err != nil {
			return err
		}
		log.Printf("[Billing] Партнёр %d разблокирован после оплаты", partner.ID)
	}

	r.WriteAudit("payment_recorded", "payment", payment.ID, &partner.ID, map[string]interface{}{
		"amount_uzs":     payment.AmountUzs,
		"payment_type":   payment.PaymentType,
		"payment_method": payment.PaymentMethod,
		"transaction_id": payment.TransactionID,
		"remaining_debt": totalDebt,
	})

	return nil
}

// ConfirmManualPayment подтверждает ручной платёж (банковский перевод).
// Возвращает ErrPaymentNotFound / ErrPaymentAlreadyCompleted при невалидном состоянии.
func (s *Service) ConfirmManualPayment(paymentID uint, adminID uint) (*models.RevenueSharePayment, error) {
	payment, err := s.repo.GetPaymentByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.Status == models.PaymentStatusCompleted {
		return nil, ErrPaymentAlreadyCompleted
	}

	partner, err := s.repo.GetPartnerByID(payment.PartnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, fmt.Errorf("партнёр %d не найден", payment.PartnerID)
	}

	now := time.Now()
	payment.Status = models.PaymentStatusCompleted
	payment.CompletedAt = &now
	payment.ConfirmedBy = &adminID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)

		if err := r.UpdatePayment(payment); err != nil {
			return fmt.Errorf("ошибка подтверждения платежа: %w", err)
		}

		return s.applyPayment(r, partner, payment, now)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyPaymentReceived(partner, payment.AmountUzs)
	}

	log.Printf("[Billing] Ручной платёж #%d подтверждён администратором %d", payment.ID, adminID)
	return payment, nil
}

// BlockResult - итог проверки просроченных долгов
type BlockResult struct {
	Checked int `json:"checked"`
	Blocked int `json:"blocked"`
}

// CheckAndBlockOverduePartners блокирует партнёров с долгом старше грейс-периода.
// Партнёры на триале и уже заблокированные пропускаются.
func (s *Service) CheckAndBlockOverduePartners() (*BlockResult, error) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.GraceDays)
	overdue, err := s.repo.GetOverdueTracking(cutoff)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска просроченных долгов: %w", err)
	}

	// Один партнёр может иметь несколько просроченных месяцев
	partnerIDs := make(map[uint]bool)
	for _, row := range overdue {
		partnerIDs[row.PartnerID] = true
	}

	result := &BlockResult{Checked: len(partnerIDs)}

	for partnerID := range partnerIDs {
		partner, err := s.repo.GetPartnerByID(partnerID)
		if err != nil {
			log.Printf("[Billing] Ошибка загрузки партнёра %d: %v", partnerID, err)
			continue
		}
		if partner == nil {
			continue
		}

		// Триал не блокируем: долг ещё не обязателен к оплате
		if partner.TariffType == models.TariffTrial {
			continue
		}
		if partner.IsBlocked() {
			continue
		}

		totalDebt, err := s.UpdatePartnerTotalDebt(partnerID)
		if err != nil {
			log.Printf("[Billing] Ошибка пересчёта долга партнёра %d: %v", partnerID, err)
			continue
		}
		if totalDebt <= 0 {
			continue
		}

		blockedUntil := time.Now().AddDate(0, 0, s.cfg.BlockDays)
		reason := fmt.Sprintf("Задолженность %d UZS старше %d дней", totalDebt, s.cfg.GraceDays)

		if err := s.repo.UpdatePartnerFields(partnerID, map[string]interface{}{
			"blocked_until": blockedUntil,
			"block_reason":  reason,
			"ai_enabled":    false,
		}); err != nil {
			log.Printf("[Billing] Ошибка блокировки партнёра %d: %v", partnerID, err)
			continue
		}

		s.repo.WriteAudit("partner_blocked", "partner", partnerID, &partnerID, map[string]interface{}{
			"debt_uzs":      totalDebt,
			"blocked_until": blockedUntil,
			"reason":        reason,
		})

		if s.notifier != nil {
			s.notifier.NotifyPartnerBlocked(partner, totalDebt)
		}

		log.Printf("[Billing] Партнёр %d (%s) заблокирован до %s, долг %d UZS",
			partnerID, partner.Name, blockedUntil.Format("2006-01-02"), totalDebt)
		result.Blocked++
	}

	return result, nil
}

// UnblockPartner снимает блокировку, если долг после пересчёта погашен.
// Возвращает true при разблокировке; частичная оплата блокировку не снимает.
func (s *Service) UnblockPartner(partnerID uint) (bool, error) {
	partner, err := s.repo.GetPartnerByID(partnerID)
	if err != nil {
		return false, err
	}
	if partner == nil {
		return false, fmt.Errorf("партнёр %d не найден", partnerID)
	}
	if partner.BlockedUntil == nil {
		return false, nil
	}

	totalDebt, err := s.UpdatePartnerTotalDebt(partnerID)
	if err != nil {
		return false, err
	}
	if totalDebt > 0 {
		return false, nil
	}

	if err := unblock(s.repo, partnerID); err != nil {
		return false, err
	}

	s.repo.WriteAudit("partner_unblocked", "partner", partnerID, &partnerID, nil)
	log.Printf("[Billing] Партнёр %d (%s) разблокирован", partnerID, partner.Name)
	return true, nil
}

// unblock снимает блокировку и возвращает доступ к AI
func unblock(repo *repository.Repository, partnerID uint) error {
	if err := repo.UpdatePartnerFields(partnerID, map[string]interface{}{
		"blocked_until": nil,
		"block_reason":  "",
		"ai_enabled":    true,
	}); err != nil {
		return fmt.Errorf("ошибка снятия блокировки: %w", err)
	}
	return nil
}

// CheckExpiredTrials переводит партнёров с истёкшим триалом на expired_trial
func (s *Service) CheckExpiredTrials() (int, error) {
	partners, err := s.repo.GetExpiredTrialPartners(time.Now())
	if err != nil {
		return 0, fmt.Errorf("ошибка поиска истёкших триалов: %w", err)
	}

	expired := 0
	for _, partner := range partners {
		if err := s.repo.UpdatePartnerFields(partner.ID, map[string]interface{}{
			"tariff_type": models.TariffExpiredTrial,
			"ai_enabled":  false,
			"is_active":   false,
		}); err != nil {
			log.Printf("[Billing] Ошибка перевода партнёра %d на expired_trial: %v", partner.ID, err)
			continue
		}

		pid := partner.ID
		s.repo.WriteAudit("trial_expired", "partner", partner.ID, &pid, nil)
		log.Printf("[Billing] Триал партнёра %d (%s) истёк", partner.ID, partner.Name)
		expired++
	}

	return expired, nil
}
