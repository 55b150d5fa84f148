package repository

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/user/marketplace-billing-api/internal/config"
	"github.com/user/marketplace-billing-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository - интерфейс для работы с БД
type Repository struct {
	db *gorm.DB
}

// NewPostgresDB создаёт подключение к PostgreSQL
func NewPostgresDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate выполняет миграцию всех моделей
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.OTPCode{},
		&models.Partner{},
		&models.MarketplaceAccount{},
		&models.MonthlySalesTracking{},
		&models.RevenueSharePayment{},
		&models.AITask{},
		&models.AISettings{},
		&models.AIUsageLog{},
		&models.AuditLog{},
		&models.ExchangeRate{},
	)
}

// NewRepository создаёт новый репозиторий
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB возвращает подключение (для транзакций в сервисах)
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// WithTx возвращает репозиторий поверх транзакции
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// === Partners ===

// GetAllPartners возвращает всех партнёров
func (r *Repository) GetAllPartners() ([]models.Partner, error) {
	var partners []models.Partner
	if err := r.db.Preload("Accounts").Order("id").Find(&partners).Error; err != nil {
		return nil, err
	}
	return partners, nil
}

// GetActivePartners возвращает активных партнёров (участвующих в биллинге)
func (r *Repository) GetActivePartners() ([]models.Partner, error) {
	var partners []models.Partner
	if err := r.db.Where("is_active = ?", true).Preload("Accounts").Order("id").Find(&partners).Error; err != nil {
		return nil, err
	}
	return partners, nil
}

// GetPartnerByID возвращает партнёра по ID
func (r *Repository) GetPartnerByID(id uint) (*models.Partner, error) {
	var partner models.Partner
	if err := r.db.Where("id = ?", id).First(&partner).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &partner, nil
}

// CreatePartner создаёт партнёра
func (r *Repository) CreatePartner(partner *models.Partner) error {
	return r.db.Create(partner).Error
}

// UpdatePartner обновляет партнёра
func (r *Repository) UpdatePartner(partner *models.Partner) error {
	return r.db.Save(partner).Error
}

// UpdatePartnerFields обновляет отдельные поля партнёра
func (r *Repository) UpdatePartnerFields(id uint, fields map[string]interface{}) error {
	return r.db.Model(&models.Partner{}).Where("id = ?", id).Updates(fields).Error
}

// GetExpiredTrialPartners возвращает партнёров с истёкшим триалом
func (r *Repository) GetExpiredTrialPartners(now time.Time) ([]models.Partner, error) {
	var partners []models.Partner
	if err := r.db.Where("tariff_type = ? AND trial_end_date IS NOT NULL AND trial_end_date < ?",
		models.TariffTrial, now).Find(&partners).Error; err != nil {
		return nil, err
	}
	return partners, nil
}

// === Marketplace accounts ===

// GetPartnerAccounts возвращает кабинеты партнёра
func (r *Repository) GetPartnerAccounts(partnerID uint) ([]models.MarketplaceAccount, error) {
	var accounts []models.MarketplaceAccount
	if err := r.db.Where("partner_id = ?", partnerID).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetActiveAccounts возвращает активные кабинеты партнёра
func (r *Repository) GetActiveAccounts(partnerID uint) ([]models.MarketplaceAccount, error) {
	var accounts []models.MarketplaceAccount
	if err := r.db.Where("partner_id = ? AND is_active = ?", partnerID, true).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// CreateMarketplaceAccount создаёт кабинет маркетплейса
func (r *Repository) CreateMarketplaceAccount(account *models.MarketplaceAccount) error {
	return r.db.Create(account).Error
}

// UpdateMarketplaceAccount обновляет кабинет
func (r *Repository) UpdateMarketplaceAccount(account *models.MarketplaceAccount) error {
	return r.db.Save(account).Error
}

// DeleteMarketplaceAccount удаляет кабинет
func (r *Repository) DeleteMarketplaceAccount(id uint) error {
	return r.db.Delete(&models.MarketplaceAccount{}, id).Error
}

// === Monthly sales tracking ===

// UpsertMonthlyTracking создаёт или перезаписывает строку продаж за месяц.
// Ключ - (partner_id, month, marketplace); повторный sync обновляет итоги, не накапливает.
func (r *Repository) UpsertMonthlyTracking(tracking *models.MonthlySalesTracking) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "partner_id"}, {Name: "month"}, {Name: "marketplace"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_sales_uzs", "total_orders",
			"revenue_share_uzs", "monthly_fee_uzs", "total_debt_uzs",
			"last_sync_at",
		}),
	}).Create(tracking).Error
}

// GetMonthlyTracking возвращает строку за месяц по маркетплейсу
func (r *Repository) GetMonthlyTracking(partnerID uint, month int, marketplace string) (*models.MonthlySalesTracking, error) {
	var tracking models.MonthlySalesTracking
	if err := r.db.Where("partner_id = ? AND month = ? AND marketplace = ?",
		partnerID, month, marketplace).First(&tracking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tracking, nil
}

// GetTrackingByID возвращает строку трекинга по ID
func (r *Repository) GetTrackingByID(id uint) (*models.MonthlySalesTracking, error) {
	var tracking models.MonthlySalesTracking
	if err := r.db.First(&tracking, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tracking, nil
}

// GetPartnerTracking возвращает историю продаж партнёра (новые месяцы первыми)
func (r *Repository) GetPartnerTracking(partnerID uint, limit int) ([]models.MonthlySalesTracking, error) {
	var rows []models.MonthlySalesTracking
	if err := r.db.Where("partner_id = ?", partnerID).
		Order("month DESC, marketplace").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetPartnerTrackingForMonth возвращает все строки партнёра за месяц
func (r *Repository) GetPartnerTrackingForMonth(partnerID uint, month int) ([]models.MonthlySalesTracking, error) {
	var rows []models.MonthlySalesTracking
	if err := r.db.Where("partner_id = ? AND month = ?", partnerID, month).
		Order("marketplace").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumUnpaidDebt возвращает сумму неоплаченного долга партнёра
func (r *Repository) SumUnpaidDebt(partnerID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.MonthlySalesTracking{}).
		Where("partner_id = ? AND is_paid = ?", partnerID, false).
		Select("COALESCE(SUM(total_debt_uzs), 0)").Scan(&total).Error
	return total, err
}

// MarkTrackingPaid помечает строку трекинга оплаченной
func (r *Repository) MarkTrackingPaid(id uint, amountUzs int64, paidAt time.Time) error {
	return r.db.Model(&models.MonthlySalesTracking{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_paid":         true,
			"paid_at":         paidAt,
			"paid_amount_uzs": amountUzs,
		}).Error
}

// GetOverdueTracking возвращает неоплаченные строки старше cutoff
func (r *Repository) GetOverdueTracking(cutoff time.Time) ([]models.MonthlySalesTracking, error) {
	var rows []models.MonthlySalesTracking
	if err := r.db.Where("is_paid = ? AND created_at <= ?", false, cutoff).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// === Payments ===

// CreatePayment создаёт платёж
func (r *Repository) CreatePayment(payment *models.RevenueSharePayment) error {
	return r.db.Create(payment).Error
}

// GetPaymentByID возвращает платёж по ID
func (r *Repository) GetPaymentByID(id uint) (*models.RevenueSharePayment, error) {
	var payment models.RevenueSharePayment
	if err := r.db.First(&payment, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// UpdatePayment обновляет платёж
func (r *Repository) UpdatePayment(payment *models.RevenueSharePayment) error {
	return r.db.Save(payment).Error
}

// GetPartnerPayments возвращает платежи партнёра (новые первыми)
func (r *Repository) GetPartnerPayments(partnerID uint, limit int) ([]models.RevenueSharePayment, error) {
	var payments []models.RevenueSharePayment
	if err := r.db.Where("partner_id = ?", partnerID).
		Order("created_at DESC").Limit(limit).Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// GetPendingManualPayments возвращает ручные платежи, ожидающие подтверждения
func (r *Repository) GetPendingManualPayments() ([]models.RevenueSharePayment, error) {
	var payments []models.RevenueSharePayment
	if err := r.db.Where("status = ? AND payment_method = ?",
		models.PaymentStatusPending, models.PaymentMethodManual).
		Order("created_at").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// === AI tasks ===

// CreateAITask создаёт AI-задачу
func (r *Repository) CreateAITask(task *models.AITask) error {
	return r.db.Create(task).Error
}

// GetAITaskByID возвращает задачу по ID (nil для неизвестного ID)
func (r *Repository) GetAITaskByID(id uint) (*models.AITask, error) {
	var task models.AITask
	if err := r.db.First(&task, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// MarkAITaskProcessing переводит задачу в processing
func (r *Repository) MarkAITaskProcessing(id uint, startedAt time.Time) error {
	return r.db.Model(&models.AITask{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.TaskStatusProcessing,
			"started_at": startedAt,
		}).Error
}

// MarkAITaskCompleted переводит задачу в completed с результатом
func (r *Repository) MarkAITaskCompleted(id uint, outputData string, completedAt time.Time) error {
	return r.db.Model(&models.AITask{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.TaskStatusCompleted,
			"output_data":  outputData,
			"completed_at": completedAt,
		}).Error
}

// MarkAITaskFailed переводит задачу в failed с сообщением об ошибке
func (r *Repository) MarkAITaskFailed(id uint, errMsg string, completedAt time.Time) error {
	return r.db.Model(&models.AITask{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.TaskStatusFailed,
			"error":        errMsg,
			"completed_at": completedAt,
		}).Error
}

// CountPendingAITasks возвращает количество задач в статусе pending
func (r *Repository) CountPendingAITasks() (int64, error) {
	var count int64
	err := r.db.Model(&models.AITask{}).Where("status = ?", models.TaskStatusPending).Count(&count).Error
	return count, err
}

// GetPendingAITasks возвращает все pending-задачи (для восстановления очереди при старте)
func (r *Repository) GetPendingAITasks() ([]models.AITask, error) {
	var tasks []models.AITask
	if err := r.db.Where("status = ?", models.TaskStatusPending).
		Order("created_at").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetPartnerAITasks возвращает задачи партнёра (новые первыми)
func (r *Repository) GetPartnerAITasks(partnerID uint, limit int) ([]models.AITask, error) {
	var tasks []models.AITask
	if err := r.db.Where("partner_id = ?", partnerID).
		Order("created_at DESC").Limit(limit).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// === AI settings / usage ===

// GetAISettings возвращает настройки AI
func (r *Repository) GetAISettings() (*models.AISettings, error) {
	var settings models.AISettings
	if err := r.db.First(&settings).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

// SaveAISettings сохраняет настройки AI
func (r *Repository) SaveAISettings(settings *models.AISettings) error {
	return r.db.Save(settings).Error
}

// CreateAIUsageLog создаёт запись использования AI
func (r *Repository) CreateAIUsageLog(usageLog *models.AIUsageLog) error {
	return r.db.Create(usageLog).Error
}

// GetAIUsageLogs возвращает логи использования за N дней
func (r *Repository) GetAIUsageLogs(days int) ([]models.AIUsageLog, error) {
	var logs []models.AIUsageLog
	since := time.Now().AddDate(0, 0, -days)
	if err := r.db.Where("created_at >= ?", since).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// === Audit log ===

// CreateAuditLog создаёт запись аудита
func (r *Repository) CreateAuditLog(entry *models.AuditLog) error {
	return r.db.Create(entry).Error
}

// WriteAudit сериализует payload и пишет запись аудита; ошибки только логируются,
// аудит не должен ронять бизнес-операцию
func (r *Repository) WriteAudit(action, entityType string, entityID uint, partnerID *uint, payload interface{}) {
	entry := &models.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		PartnerID:  partnerID,
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			entry.Payload = string(data)
		}
	}
	if err := r.db.Create(entry).Error; err != nil {
		log.Printf("[Audit] Ошибка записи аудита %s: %v", action, err)
	}
}

// GetAuditLogs возвращает записи аудита (новые первыми)
func (r *Repository) GetAuditLogs(limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	if err := r.db.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// === Exchange rates ===

// GetExchangeRates возвращает историю курсов
func (r *Repository) GetExchangeRates(limit int) ([]models.ExchangeRate, error) {
	var rates []models.ExchangeRate
	if err := r.db.Order("rate_date DESC").Limit(limit).Find(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}

// SaveExchangeRate сохраняет курс валют
func (r *Repository) SaveExchangeRate(rate *models.ExchangeRate) error {
	return r.db.Create(rate).Error
}
